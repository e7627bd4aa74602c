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
	"math"
	"math/bits"
)

func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func subU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow
	}
	return diff, nil
}

func addI64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// mulGE reports whether a*b >= c*d using full 128-bit products
func mulGE(a, b, c, d uint64) bool {
	hi1, lo1 := bits.Mul64(a, b)
	hi2, lo2 := bits.Mul64(c, d)
	if hi1 != hi2 {
		return hi1 > hi2
	}
	return lo1 >= lo2
}

// scaleThreeHalves returns v*3/2
func scaleThreeHalves(v uint64) (uint64, error) {
	hi, lo := bits.Mul64(v, 3)
	if hi >= 2 {
		return 0, ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, 2)
	return q, nil
}

// quorumReached reports whether participation meets the quorum percentage
// of the snapshot supply
func quorumReached(p *Proposal, quorumPercentage uint8) (bool, error) {
	total, err := addU64(p.ForVotes, p.AgainstVotes)
	if err != nil {
		return false, err
	}
	total, err = addU64(total, p.AbstainVotes)
	if err != nil {
		return false, err
	}
	return mulGE(total, 100, p.SnapshotSupply, uint64(quorumPercentage)), nil
}

// approvalReached compares For votes against non-abstaining votes. Without
// any For or Against vote nothing is approved
func approvalReached(p *Proposal, approvalThreshold uint8) (bool, error) {
	decided, err := addU64(p.ForVotes, p.AgainstVotes)
	if err != nil {
		return false, err
	}
	if decided == 0 {
		return false, nil
	}
	return mulGE(p.ForVotes, 100, decided, uint64(approvalThreshold)), nil
}

// appealEligible reports whether For and Against votes reached
// AppealQuorumThreshold percent of the quorum requirement:
// decided/(supply*quorum/100) >= threshold/100
func appealEligible(p *Proposal, quorumPercentage uint8) (bool, error) {
	if quorumPercentage == 0 {
		return false, nil
	}
	decided, err := addU64(p.ForVotes, p.AgainstVotes)
	if err != nil {
		return false, err
	}
	return mulGE(
		decided,
		100*100,
		p.SnapshotSupply,
		AppealQuorumThreshold*uint64(quorumPercentage),
	), nil
}
