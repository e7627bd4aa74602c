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

package ledger

import (
	"context"
	"log/slog"
	"math/bits"
	"sync"
)

// MemoryLedger keeps balances of one asset in memory. Minted value is the
// circulating supply reported by TotalSupply. Balances do not survive a
// restart, so it suits tests and ledgers mirrored from elsewhere
type MemoryLedger struct {
	logger   *slog.Logger
	metrics  *ledgerMetrics
	balances map[string]uint64
	asset    string
	supply   uint64
	mu       sync.RWMutex
}

// NewMemoryLedger returns an empty ledger for the given asset id
func NewMemoryLedger(asset string, opts ...LedgerOptionFunc) *MemoryLedger {
	o := newOptions(opts)
	return &MemoryLedger{
		asset:    asset,
		balances: make(map[string]uint64),
		logger:   o.logger,
		metrics:  o.metrics(),
	}
}

// Asset returns the asset id held by the ledger
func (l *MemoryLedger) Asset() string {
	return l.asset
}

// Mint creates new value in account and grows the supply
func (l *MemoryLedger) Mint(account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	newSupply, carry := bits.Add64(l.supply, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	newBalance, carry := bits.Add64(l.balances[account], amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	l.supply = newSupply
	l.balances[account] = newBalance
	if l.metrics != nil {
		l.metrics.supply.Set(float64(newSupply))
	}
	l.logger.Debug(
		"minted",
		"component", "ledger",
		"account", account,
		"amount", amount,
	)
	return nil
}

func (l *MemoryLedger) Debit(_ context.Context, account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balances[account]
	if balance < amount {
		l.recordOp("debit", "insufficient")
		return ErrInsufficientBalance
	}
	l.balances[account] = balance - amount
	l.recordOp("debit", "ok")
	return nil
}

func (l *MemoryLedger) Credit(_ context.Context, account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	newBalance, carry := bits.Add64(l.balances[account], amount, 0)
	if carry != 0 {
		l.recordOp("credit", "overflow")
		return ErrBalanceOverflow
	}
	l.balances[account] = newBalance
	l.recordOp("credit", "ok")
	return nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *MemoryLedger) TotalSupply(_ context.Context, asset string) (uint64, error) {
	if asset != l.asset {
		return 0, ErrUnknownAsset
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply, nil
}

func (l *MemoryLedger) recordOp(op string, result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.operations.WithLabelValues(op, result).Inc()
}
