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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/vedao/database/types"
)

// ErrRecordNotFound is returned when no record exists under a key
var ErrRecordNotFound = errors.New("record not found")

// GetRecord decodes the CBOR record stored under key into dest
func (t *Txn) GetRecord(key []byte, dest any) error {
	val, err := t.Get(key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	if _, err := cbor.Decode(val, dest); err != nil {
		return fmt.Errorf("decode record %x: %w", key, err)
	}
	return nil
}

// SetRecord stores the CBOR encoding of record under key
func (t *Txn) SetRecord(key []byte, record any) error {
	val, err := cbor.Encode(record)
	if err != nil {
		return fmt.Errorf("encode record %x: %w", key, err)
	}
	return t.Set(key, val)
}

// IterateRecords calls fn with the key and raw value of every record whose
// key starts with prefix, in key order
func (t *Txn) IterateRecords(
	prefix []byte,
	fn func(key []byte, val []byte) error,
) error {
	if t.blobTxn == nil {
		return types.ErrNoStoreAvailable
	}
	iter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer iter.Close()
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.Key(), val); err != nil {
			return err
		}
	}
	return iter.Err()
}
