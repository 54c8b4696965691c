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

import "errors"

var (
	ErrInsufficientBalance = errors.New("transfer amount exceeds balance")
	ErrFutureLookup        = errors.New("block not yet mined")
	ErrZeroAddress         = errors.New("zero address")
	ErrSupplyOverflow      = errors.New("total supply overflow")
	ErrNonPayable          = errors.New("token calls do not accept value")
	ErrUnknownMethod       = errors.New("unknown token method")
	ErrInvalidSnapshot     = errors.New("invalid snapshot id")
)
