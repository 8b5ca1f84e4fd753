/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package resource

import "github.com/google/uuid"

// Token is an opaque handle minted at cycle start and retired at commit or
// abort, scoping a transactional, isolated view of tentative reservations.
type Token string

func newToken() Token {
	return Token(uuid.NewString())
}

// transaction accumulates one token's tentative reservations before commit.
// pending is keyed by resolved-path key, then by owner; a missing entry for
// an owner means "no tentative change for this owner on this node yet".
type transaction struct {
	pending map[string]map[string]uint64
}

func newTransaction() *transaction {
	return &transaction{pending: make(map[string]map[string]uint64)}
}

func (t *transaction) get(nodeKey, owner string) (uint64, bool) {
	m, ok := t.pending[nodeKey]
	if !ok {
		return 0, false
	}
	v, ok := m[owner]
	return v, ok
}

func (t *transaction) set(nodeKey, owner string, amount uint64) {
	m, ok := t.pending[nodeKey]
	if !ok {
		m = make(map[string]uint64)
		t.pending[nodeKey] = m
	}
	m[owner] = amount
}

// pendingOthersTotal sums every pending amount on nodeKey except owner's own.
func (t *transaction) pendingOthersTotal(nodeKey, owner string) uint64 {
	var sum uint64
	for o, v := range t.pending[nodeKey] {
		if o == owner {
			continue
		}
		sum += v
	}
	return sum
}
