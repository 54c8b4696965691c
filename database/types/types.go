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

package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/holiman/uint256"
)

// Uint256 stores a 256-bit unsigned integer as a decimal string
//
//nolint:recvcheck
type Uint256 struct {
	uint256.Int
}

func NewUint256(v *uint256.Int) Uint256 {
	var ret Uint256
	if v != nil {
		ret.Set(v)
	}
	return ret
}

func (u Uint256) Value() (driver.Value, error) {
	return u.Dec(), nil
}

func (u *Uint256) Scan(val any) error {
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
	tmpInt, err := uint256.FromDecimal(v)
	if err != nil {
		return fmt.Errorf("failed to set uint256 value from string: %s", v)
	}
	u.Set(tmpInt)
	return nil
}
