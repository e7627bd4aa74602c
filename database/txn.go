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
	"sync"
	"time"

	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	"github.com/blinklabs-io/vedao/database/types"
)

// Txn wraps a blob transaction and the index changes staged against it.
// Index changes are applied to the metadata store only after the blob
// transaction commits, so the index never describes records that do not
// exist
type Txn struct {
	db        *Database
	blobTxn   types.Txn
	indexOps  []func(metadata.IndexWriter) error
	lock      sync.Mutex
	finished  bool
	readWrite bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

// ReadWrite reports whether the transaction may write
func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// Get returns the raw value stored under key
func (t *Txn) Get(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrNoStoreAvailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

// Set stores a raw value under key
func (t *Txn) Set(key []byte, val []byte) error {
	if t.blobTxn == nil {
		return types.ErrNoStoreAvailable
	}
	return t.db.Blob().Set(t.blobTxn, key, val)
}

// Delete removes key
func (t *Txn) Delete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrNoStoreAvailable
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// Index stages an index change to be applied after a successful commit
func (t *Txn) Index(fn func(metadata.IndexWriter) error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.indexOps = append(t.indexOps, fn)
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		if errors.Is(err, types.ErrTxnConflict) {
			return err
		}
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	if t.blobTxn == nil {
		t.finished = true
		return types.ErrNoStoreAvailable
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		return t.rollback()
	}
	// Commits are serialized so that the index sees them in commit order
	t.db.commitLock.Lock()
	defer t.db.commitLock.Unlock()
	commitTimestamp := time.Now().UnixMilli()
	if err := t.db.Blob().SetCommitTimestamp(commitTimestamp, t.blobTxn); err != nil {
		_ = t.blobTxn.Rollback()
		t.finished = true
		return fmt.Errorf("failed to update commit timestamp: %w", err)
	}
	t.finished = true
	if err := t.blobTxn.Commit(); err != nil {
		return err
	}
	if t.db.Metadata() == nil {
		return nil
	}
	indexErr := t.db.Metadata().Apply(
		commitTimestamp,
		func(w metadata.IndexWriter) error {
			for _, op := range t.indexOps {
				if err := op(w); err != nil {
					return err
				}
			}
			return nil
		},
	)
	if indexErr != nil {
		// The records are committed and remain authoritative. The commit
		// timestamps now disagree, which triggers an index rebuild
		t.db.indexStale.Store(true)
		t.db.logger.Error(
			"partial commit: records committed, index update failed",
			"component", "database",
			"error", indexErr,
		)
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.indexOps = nil
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			return fmt.Errorf("blob rollback: %w", err)
		}
	}
	return nil
}

// Release releases transaction resources. For read-only transactions, this
// releases locks and resources. For read-write transactions, this is equivalent
// to Rollback. Use this in defer statements for clean resource cleanup.
// Errors are logged but not returned, making this safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
