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
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

// Token state lives under its own key prefix so the chain height and any
// later data can share the database
var tokenKeyPrefix = []byte("token/")

func tokenKey(key []byte) []byte {
	ret := make([]byte, 0, len(tokenKeyPrefix)+len(key))
	ret = append(ret, tokenKeyPrefix...)
	return append(ret, key...)
}

// Get returns the token store value for key, or nil when it is missing
func (d *BlobStoreBadger) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := d.DB().View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	return ret, err
}

// Set stores a token store key/value pair
func (d *BlobStoreBadger) Set(key, value []byte) error {
	return d.DB().Update(func(txn *badger.Txn) error {
		return txn.Set(tokenKey(key), value)
	})
}

// Delete removes a token store key
func (d *BlobStoreBadger) Delete(key []byte) error {
	return d.DB().Update(func(txn *badger.Txn) error {
		return txn.Delete(tokenKey(key))
	})
}

// Floor returns the greatest token store key with the given prefix that
// sorts at or before key
func (d *BlobStoreBadger) Floor(prefix, key []byte) ([]byte, []byte, error) {
	var retKey, retValue []byte
	fullPrefix := tokenKey(prefix)
	err := d.DB().View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:  fullPrefix,
			Reverse: true,
		})
		defer it.Close()
		// A reverse seek lands on the greatest key at or before the target
		it.Seek(tokenKey(key))
		if !it.ValidForPrefix(fullPrefix) {
			return nil
		}
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		retKey = item.KeyCopy(nil)[len(tokenKeyPrefix):]
		retValue = value
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return retKey, retValue, nil
}
