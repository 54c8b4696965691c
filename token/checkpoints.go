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

package token

import (
	"encoding/binary"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Key layout
//
//	b<addr>          balance
//	d<addr>          delegatee
//	v<addr><block>   delegated votes checkpoint
//	s<block>         total supply checkpoint
const (
	prefixBalance  = 'b'
	prefixDelegate = 'd'
	prefixVotes    = 'v'
	prefixSupply   = 's'
)

// Checkpoint is a value recorded at a block height
type Checkpoint struct {
	Block uint64
	Value uint256.Int
}

func balanceKey(addr common.Address) []byte {
	return append([]byte{prefixBalance}, addr.Bytes()...)
}

func delegateKey(addr common.Address) []byte {
	return append([]byte{prefixDelegate}, addr.Bytes()...)
}

func votesPrefix(addr common.Address) []byte {
	return append([]byte{prefixVotes}, addr.Bytes()...)
}

func supplyPrefix() []byte {
	return []byte{prefixSupply}
}

func checkpointKey(prefix []byte, block uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], block)
	return key
}

func encodeAmount(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func decodeAmount(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}

// lookupCheckpoint returns the value of the latest checkpoint at or before block
func lookupCheckpoint(
	store Store,
	prefix []byte,
	block uint64,
) (Checkpoint, bool, error) {
	key, value, err := store.Floor(prefix, checkpointKey(prefix, block))
	if err != nil {
		return Checkpoint{}, false, err
	}
	if key == nil || len(key) != len(prefix)+8 {
		return Checkpoint{}, false, nil
	}
	ckpt := Checkpoint{
		Block: binary.BigEndian.Uint64(key[len(prefix):]),
	}
	ckpt.Value.SetBytes(value)
	return ckpt, true, nil
}

func latestCheckpoint(store Store, prefix []byte) (Checkpoint, bool, error) {
	return lookupCheckpoint(store, prefix, math.MaxUint64)
}
