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

package governance_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/vedao/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	testDefs := []struct {
		err      error
		kind     string
		category governance.ErrorCategory
	}{
		{governance.ErrInvalidTitleLength, "InvalidTitleLength", governance.CategoryValidation},
		{governance.ErrRecipientMismatch, "RecipientMismatch", governance.CategoryAuthorization},
		{governance.ErrTimelockNotElapsed, "TimelockNotElapsed", governance.CategoryState},
		{governance.ErrInsufficientBond, "InsufficientBond", governance.CategoryResource},
		{governance.ErrArithmeticOverflow, "ArithmeticOverflow", governance.CategoryArithmetic},
		{fmt.Errorf("op: %w", governance.ErrConcurrentModification), "ConcurrentModification", governance.CategoryState},
		{errors.New("disk on fire"), "Internal", governance.CategoryInternal},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.kind, governance.KindOf(testDef.err))
		assert.Equal(t, testDef.category, governance.CategoryOf(testDef.err))
	}
}

func TestEnumText(t *testing.T) {
	for _, status := range []governance.ProposalStatus{
		governance.ProposalStatusActive,
		governance.ProposalStatusPassed,
		governance.ProposalStatusDefeated,
		governance.ProposalStatusExecuted,
		governance.ProposalStatusCancelled,
	} {
		text, err := status.MarshalText()
		require.NoError(t, err)
		parsed, err := governance.ParseProposalStatus(string(text))
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}
	assert.False(t, governance.ProposalStatusActive.Terminal())
	assert.False(t, governance.ProposalStatusPassed.Terminal())
	assert.True(t, governance.ProposalStatusExecuted.Terminal())
	assert.True(t, governance.ProposalStatusCancelled.Terminal())

	var choice governance.VoteChoice
	require.NoError(t, choice.UnmarshalText([]byte("Abstain")))
	assert.Equal(t, governance.VoteChoiceAbstain, choice)
	require.Error(t, choice.UnmarshalText([]byte("Maybe")))
	_, err := governance.ParseProposalType("Coup")
	require.Error(t, err)
	_, err = governance.ProposalType(9).MarshalText()
	require.Error(t, err)
}

func TestManualClock(t *testing.T) {
	clock := governance.NewManualClock(startTime)
	clock.Advance(time.Hour)
	assert.Equal(t, startTime.Add(time.Hour), clock.Now())
	clock.Set(startTime)
	assert.Equal(t, startTime.Add(time.Hour), clock.Now(), "clock must not move backwards")
	clock.Advance(-time.Hour)
	assert.Equal(t, startTime.Add(time.Hour), clock.Now())
	clock.Set(startTime.Add(2 * time.Hour))
	assert.Equal(t, startTime.Add(2*time.Hour), clock.Now())
}

func TestSystemClockMonotonic(t *testing.T) {
	clock := governance.NewSystemClock()
	prev := clock.Now()
	for range 100 {
		now := clock.Now()
		assert.False(t, now.Before(prev))
		prev = now
	}
}
