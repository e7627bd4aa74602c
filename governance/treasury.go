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
	"context"

	"github.com/blinklabs-io/vedao/identity"
)

// DepositToTreasury moves amount from the caller into the treasury. Value
// only leaves the treasury through an executed proposal
func (e *Engine) DepositToTreasury(
	ctx context.Context,
	caller identity.Identity,
	amount uint64,
) (uint64, error) {
	var total uint64
	err := e.mutate(ctx, "deposit_to_treasury", func(s *opState) error {
		if err := s.requireSigner(caller); err != nil {
			return err
		}
		cfg, err := s.loadActiveConfig()
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		total, err = addU64(cfg.TotalTreasuryDeposits, amount)
		if err != nil {
			return err
		}
		cfg.TotalTreasuryDeposits = total
		if err := s.saveConfig(cfg); err != nil {
			return err
		}
		if err := s.transfer(
			string(caller),
			cfg.TreasuryAccount,
			amount,
			ErrInsufficientBalance,
		); err != nil {
			return err
		}
		s.emit(TreasuryDepositEventType, TreasuryDepositEvent{
			Depositor: caller,
			Amount:    amount,
			Total:     total,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info(
		"treasury deposit",
		"component", "governance",
		"depositor", caller,
		"amount", amount,
	)
	return total, nil
}
