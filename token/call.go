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
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const callABIJSON = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"delegate","stateMutability":"nonpayable",
	 "inputs":[{"name":"delegatee","type":"address"}],
	 "outputs":[]}
]`

var callABI = mustParseABI(callABIJSON)

func mustParseABI(raw string) abi.ABI {
	ret, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return ret
}

// EncodeTransfer builds the payload of a transfer(address,uint256) call
func EncodeTransfer(to common.Address, amount *uint256.Int) ([]byte, error) {
	return callABI.Pack("transfer", to, amount.ToBig())
}

// EncodeDelegate builds the payload of a delegate(address) call
func EncodeDelegate(delegatee common.Address) ([]byte, error) {
	return callABI.Pack("delegate", delegatee)
}

// Call applies an ABI encoded token call made by from
func (l *Ledger) Call(
	ctx context.Context,
	from common.Address,
	value *uint256.Int,
	payload []byte,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value != nil && !value.IsZero() {
		return ErrNonPayable
	}
	if len(payload) < 4 {
		return fmt.Errorf("%w: short payload", ErrUnknownMethod)
	}
	method, err := callABI.MethodById(payload[:4])
	if err != nil {
		return fmt.Errorf("%w: %x", ErrUnknownMethod, payload[:4])
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return fmt.Errorf("decode %s: %w", method.Name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch method.Name {
	case "transfer":
		to, ok := args[0].(common.Address)
		if !ok {
			return errors.New("transfer: bad recipient")
		}
		amountBig, ok := args[1].(*big.Int)
		if !ok {
			return errors.New("transfer: bad amount")
		}
		amount, overflow := uint256.FromBig(amountBig)
		if overflow {
			return errors.New("transfer: amount overflow")
		}
		return l.transfer(from, to, amount)
	case "delegate":
		delegatee, ok := args[0].(common.Address)
		if !ok {
			return errors.New("delegate: bad delegatee")
		}
		return l.delegate(from, delegatee)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
	}
}
