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
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/database/types"
)

// TxnLedger is a Ledger kept in the record store. A ledger bound to a
// transaction commits or rolls back together with the records written in it
type TxnLedger interface {
	Ledger
	Bind(txn *database.Txn) Ledger
}

// StoreLedger keeps balances and supply of one asset in the record store
type StoreLedger struct {
	db      *database.Database
	logger  *slog.Logger
	metrics *ledgerMetrics
	asset   string
}

// NewStoreLedger returns a ledger for asset over an open database
func NewStoreLedger(db *database.Database, asset string, opts ...LedgerOptionFunc) *StoreLedger {
	o := newOptions(opts)
	return &StoreLedger{
		db:      db,
		asset:   asset,
		logger:  o.logger,
		metrics: o.metrics(),
	}
}

// Asset returns the asset id held by the ledger
func (l *StoreLedger) Asset() string {
	return l.asset
}

// Bind returns a view of the ledger that reads and writes through txn
func (l *StoreLedger) Bind(txn *database.Txn) Ledger {
	return &boundLedger{l: l, txn: txn}
}

func (l *StoreLedger) Debit(ctx context.Context, account string, amount uint64) error {
	return l.db.Update(func(txn *database.Txn) error {
		return l.Bind(txn).Debit(ctx, account, amount)
	})
}

func (l *StoreLedger) Credit(ctx context.Context, account string, amount uint64) error {
	return l.db.Update(func(txn *database.Txn) error {
		return l.Bind(txn).Credit(ctx, account, amount)
	})
}

func (l *StoreLedger) BalanceOf(ctx context.Context, account string) (uint64, error) {
	var ret uint64
	err := l.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = l.Bind(txn).BalanceOf(ctx, account)
		return err
	})
	return ret, err
}

func (l *StoreLedger) TotalSupply(ctx context.Context, asset string) (uint64, error) {
	var ret uint64
	err := l.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = l.Bind(txn).TotalSupply(ctx, asset)
		return err
	})
	return ret, err
}

// Mint creates new value in account and grows the supply
func (l *StoreLedger) Mint(account string, amount uint64) error {
	return l.db.Update(func(txn *database.Txn) error {
		return l.mint(txn, account, amount)
	})
}

// MintGenesis mints balances once per store. It reports false when the
// genesis balances were already minted
func (l *StoreLedger) MintGenesis(balances map[string]uint64) (bool, error) {
	minted := false
	err := l.db.Update(func(txn *database.Txn) error {
		marker := types.MetaKey(types.MetaGenesisMinted)
		if _, err := txn.Get(marker); err == nil {
			return nil
		} else if !errors.Is(err, types.ErrBlobKeyNotFound) {
			return err
		}
		for account, amount := range balances {
			if err := l.mint(txn, account, amount); err != nil {
				return fmt.Errorf("mint %s: %w", account, err)
			}
		}
		minted = true
		return txn.Set(marker, []byte{1})
	})
	if err != nil {
		return false, err
	}
	return minted, nil
}

func (l *StoreLedger) mint(txn *database.Txn, account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	supplyKey := types.SupplyKey(l.asset)
	supply, err := readAmount(txn, supplyKey)
	if err != nil {
		return err
	}
	newSupply, carry := bits.Add64(supply, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	balanceKey := types.BalanceKey(account)
	balance, err := readAmount(txn, balanceKey)
	if err != nil {
		return err
	}
	newBalance, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	if err := txn.Set(supplyKey, types.Uint64ToBytes(newSupply)); err != nil {
		return err
	}
	if err := txn.Set(balanceKey, types.Uint64ToBytes(newBalance)); err != nil {
		return err
	}
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

func (l *StoreLedger) recordOp(op string, result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.operations.WithLabelValues(op, result).Inc()
}

// readAmount returns the amount stored under key, or 0 when none is
func readAmount(txn *database.Txn, key []byte) (uint64, error) {
	val, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("ledger amount %x: unexpected length %d", key, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// boundLedger applies ledger operations inside one record store
// transaction
type boundLedger struct {
	l   *StoreLedger
	txn *database.Txn
}

func (b *boundLedger) Debit(_ context.Context, account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	key := types.BalanceKey(account)
	balance, err := readAmount(b.txn, key)
	if err != nil {
		return err
	}
	if balance < amount {
		b.l.recordOp("debit", "insufficient")
		return ErrInsufficientBalance
	}
	if err := b.txn.Set(key, types.Uint64ToBytes(balance-amount)); err != nil {
		return err
	}
	b.l.recordOp("debit", "ok")
	return nil
}

func (b *boundLedger) Credit(_ context.Context, account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	key := types.BalanceKey(account)
	balance, err := readAmount(b.txn, key)
	if err != nil {
		return err
	}
	newBalance, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		b.l.recordOp("credit", "overflow")
		return ErrBalanceOverflow
	}
	if err := b.txn.Set(key, types.Uint64ToBytes(newBalance)); err != nil {
		return err
	}
	b.l.recordOp("credit", "ok")
	return nil
}

func (b *boundLedger) BalanceOf(_ context.Context, account string) (uint64, error) {
	return readAmount(b.txn, types.BalanceKey(account))
}

func (b *boundLedger) TotalSupply(_ context.Context, asset string) (uint64, error) {
	if asset != b.l.asset {
		return 0, ErrUnknownAsset
	}
	return readAmount(b.txn, types.SupplyKey(asset))
}
