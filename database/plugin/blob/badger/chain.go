// Copyright 2026 Blink Labs Software
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

package badger

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

var chainHeightKey = []byte("chain/height")

// LoadHeight returns the persisted block height, if any
func (d *BlobStoreBadger) LoadHeight() (uint64, bool, error) {
	var ret uint64
	var found bool
	err := d.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get(chainHeightKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("invalid stored height length %d", len(val))
			}
			ret = binary.BigEndian.Uint64(val)
			found = true
			return nil
		})
	})
	return ret, found, err
}

// SaveHeight persists the block height
func (d *BlobStoreBadger) SaveHeight(height uint64) error {
	return d.DB().Update(func(txn *badger.Txn) error {
		return txn.Set(chainHeightKey, binary.BigEndian.AppendUint64(nil, height))
	})
}
