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

package models

// GovernanceEvent is an entry of the append-only governance event log. The
// primary key is the event sequence number.
type GovernanceEvent struct {
	ID         uint   `gorm:"primarykey"`
	Block      uint64 `gorm:"index;not null"`
	Type       string `gorm:"index;size:64;not null"`
	ProposalID []byte `gorm:"index;size:32;not null"`
	Data       []byte `gorm:"not null"`
}

// TableName returns the table name
func (GovernanceEvent) TableName() string {
	return "governance_event"
}
