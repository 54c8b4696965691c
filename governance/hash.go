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

package governance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var proposalArguments = abi.Arguments{
	{Type: mustNewType("address[]")},
	{Type: mustNewType("uint256[]")},
	{Type: mustNewType("bytes[]")},
	{Type: mustNewType("bytes32")},
}

func mustNewType(name string) abi.Type {
	ret, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return ret
}

// HashDescription returns keccak256 of the description text
func HashDescription(description string) common.Hash {
	return crypto.Keccak256Hash([]byte(description))
}

// HashProposal returns the proposal id for an action list and description
// hash: keccak256(abi.encode(targets, values, payloads, descriptionHash))
func HashProposal(actions []Action, descriptionHash common.Hash) (ProposalID, error) {
	targets := make([]common.Address, len(actions))
	values := make([]*big.Int, len(actions))
	payloads := make([][]byte, len(actions))
	for i, action := range actions {
		targets[i] = action.Target
		if action.Value != nil {
			values[i] = action.Value.ToBig()
		} else {
			values[i] = new(big.Int)
		}
		payloads[i] = action.Payload
		if payloads[i] == nil {
			payloads[i] = []byte{}
		}
	}
	encoded, err := proposalArguments.Pack(
		targets,
		values,
		payloads,
		[32]byte(descriptionHash),
	)
	if err != nil {
		return ProposalID{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}
