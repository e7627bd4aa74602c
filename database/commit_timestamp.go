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
	"fmt"

	"github.com/blinklabs-io/vedao/database/plugin/metadata"
)

type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

func (d *Database) checkCommitTimestamp() error {
	metadataTimestamp, metadataErr := d.Metadata().GetCommitTimestamp()
	if metadataErr != nil {
		return fmt.Errorf(
			"failed to get metadata timestamp from plugin: %w",
			metadataErr,
		)
	}
	blobTimestamp, blobErr := d.Blob().GetCommitTimestamp()
	if blobErr != nil {
		return fmt.Errorf(
			"failed to get blob timestamp from plugin: %w",
			blobErr,
		)
	}
	if blobTimestamp != metadataTimestamp {
		return CommitTimestampError{
			MetadataTimestamp: metadataTimestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

// RebuildIndex discards the index and rebuilds it from the records visible
// in a single read snapshot. fn walks the records and writes their index
// rows. Commits wait for the rebuild, so no update is lost
func (d *Database) RebuildIndex(
	fn func(txn *Txn, w metadata.IndexWriter) error,
) error {
	d.commitLock.Lock()
	defer d.commitLock.Unlock()
	blobTimestamp, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to get blob timestamp from plugin: %w", err)
	}
	if err := d.Metadata().Reset(); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	txn := d.Transaction(false)
	defer txn.Release()
	if err := d.Metadata().Apply(
		blobTimestamp,
		func(w metadata.IndexWriter) error {
			return fn(txn, w)
		},
	); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	d.indexStale.Store(false)
	d.logger.Info(
		"rebuilt metadata index from records",
		"component", "database",
		"commit_timestamp", blobTimestamp,
	)
	return nil
}
