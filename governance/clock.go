// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governance

import (
	"sync"
	"time"
)

// Clock is the trusted time source for all timelock and voting window
// checks
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and never goes backwards, even when the
// wall clock is stepped back
type SystemClock struct {
	nowFunc func() time.Time
	last    time.Time
	mu      sync.Mutex
}

func NewSystemClock() *SystemClock {
	return &SystemClock{nowFunc: time.Now}
}

func (c *SystemClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	nowFunc := c.nowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	now := nowFunc()
	if now.Before(c.last) {
		return c.last
	}
	c.last = now
	return now
}

// ManualClock only moves when told to
type ManualClock struct {
	now time.Time
	mu  sync.RWMutex
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is ignored
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
}
