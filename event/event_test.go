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

package event_test

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newBus(t *testing.T, reg prometheus.Registerer) *event.EventBus {
	t.Helper()
	eb := event.NewEventBus(reg, nil)
	t.Cleanup(eb.Stop)
	return eb
}

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestEventBusSingleSubscriber(t *testing.T) {
	const testEvtType event.EventType = "test.event"
	eb := newBus(t, nil)
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	evt := receive(t, subCh)
	assert.Equal(t, 999, evt.Data)
	assert.Equal(t, testEvtType, evt.Type)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	const testEvtType event.EventType = "test.event"
	eb := newBus(t, nil)
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "x"))
	assert.Equal(t, "x", receive(t, sub1Ch).Data)
	assert.Equal(t, "x", receive(t, sub2Ch).Data)
}

func TestEventBusWildcard(t *testing.T) {
	eb := newBus(t, nil)
	_, allCh := eb.Subscribe(event.EventTypeAll)
	_, oneCh := eb.Subscribe("a")
	eb.Publish("a", event.NewEvent("a", 1))
	eb.Publish("b", event.NewEvent("b", 2))
	assert.Equal(t, event.EventType("a"), receive(t, allCh).Type)
	assert.Equal(t, event.EventType("b"), receive(t, allCh).Type)
	assert.Equal(t, 1, receive(t, oneCh).Data)
	select {
	case evt := <-oneCh:
		t.Fatalf("unexpected event %v", evt)
	default:
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := newBus(t, nil)
	subId, subCh := eb.Subscribe("test.event")
	eb.Unsubscribe("test.event", subId)
	eb.Publish("test.event", event.NewEvent("test.event", 1))
	_, ok := <-subCh
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestEventBusSubscribeFunc(t *testing.T) {
	eb := newBus(t, nil)
	var count atomic.Int32
	done := make(chan struct{}, 3)
	eb.SubscribeFunc("test.event", func(event.Event) {
		count.Add(1)
		done <- struct{}{}
	})
	for i := range 3 {
		eb.Publish("test.event", event.NewEvent("test.event", i))
	}
	for range 3 {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for handler")
		}
	}
	assert.Equal(t, int32(3), count.Load())
}

func TestEventBusPublishAsync(t *testing.T) {
	eb := newBus(t, nil)
	_, subCh := eb.Subscribe("test.async")
	require.True(t, eb.PublishAsync("test.async", event.NewEvent("test.async", "later")))
	assert.Equal(t, "later", receive(t, subCh).Data)
}

func TestEventBusStop(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe("test.event")
	eb.Stop()
	_, ok := <-subCh
	assert.False(t, ok)
	assert.False(t, eb.PublishAsync("test.event", event.NewEvent("test.event", 1)))
	// Second stop is a no-op
	eb.Stop()
}

func TestEventBusFullSubscriberDropsWithoutBlocking(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := newBus(t, reg)
	_, subCh := eb.Subscribe("test.full")
	for i := range event.EventQueueSize + 5 {
		eb.Publish("test.full", event.NewEvent("test.full", i))
	}
	assert.Len(t, subCh, event.EventQueueSize)
	expected := `
# HELP event_bus_delivery_errors_total failed or dropped deliveries by event type and kind
# TYPE event_bus_delivery_errors_total counter
event_bus_delivery_errors_total{kind="dropped",type="test.full"} 5
`
	require.NoError(t, testutil.GatherAndCompare(
		reg,
		strings.NewReader(expected),
		"event_bus_delivery_errors_total",
	))
	// Subscriber is kept after drops
	assert.Equal(t, 0, receive(t, subCh).Data)
}
