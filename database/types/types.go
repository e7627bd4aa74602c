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

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
)

// Uint64 stores an unsigned 64-bit value as a decimal string so that the
// full range survives SQL backends that only have signed integers
//
//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var v string
	switch tmpVal := val.(type) {
	case string:
		v = tmpVal
	case []byte:
		v = string(tmpVal)
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

var (
	// ErrBlobKeyNotFound is returned by blob reads of a missing key
	ErrBlobKeyNotFound = errors.New("blob key not found")
	// ErrTxnWrongType is returned when a store receives another store's
	// transaction type
	ErrTxnWrongType = errors.New("invalid transaction type")
	ErrNilTxn       = errors.New("nil transaction")
	// ErrNoStoreAvailable is returned by a transaction whose database has
	// no blob store
	ErrNoStoreAvailable     = errors.New("no store available")
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
	// ErrTxnConflict is returned on commit when another transaction
	// modified a key this transaction read
	ErrTxnConflict = errors.New("transaction conflict")
	ErrReadOnlyTxn = errors.New("read-only transaction")
)

// BlobItem is one key/value pair of an iteration
type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator walks the keys under a prefix in ascending order. Items must
// only be accessed while the creating transaction is active
type BlobIterator interface {
	Rewind()
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

type BlobIteratorOptions struct {
	Prefix []byte
}

// Txn is the commit/rollback handle of a blob transaction. The database
// layer stages index work on top of it
type Txn interface {
	Commit() error
	Rollback() error
}
