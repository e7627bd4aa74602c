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

// Package ledger defines the balance-transfer collaborator used by the
// governance engine and provides an in-memory reference implementation
package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Ledger moves a single fungible asset between named accounts. Each call is
// atomic on its own
type Ledger interface {
	Debit(ctx context.Context, account string, amount uint64) error
	Credit(ctx context.Context, account string, amount uint64) error
	BalanceOf(ctx context.Context, account string) (uint64, error)
	TotalSupply(ctx context.Context, asset string) (uint64, error)
}

// Transfer debits from and credits to. When the credit fails the debit is
// reversed, so a failed transfer leaves both balances untouched
func Transfer(
	ctx context.Context,
	l Ledger,
	from string,
	to string,
	amount uint64,
) error {
	if err := l.Debit(ctx, from, amount); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := l.Credit(ctx, to, amount); err != nil {
		if revertErr := l.Credit(ctx, from, amount); revertErr != nil {
			return fmt.Errorf(
				"credit %s: %w (reverting debit of %s: %w)",
				to,
				err,
				from,
				revertErr,
			)
		}
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}
