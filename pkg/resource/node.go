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

// Package resource implements the Resource Accountant: the hierarchical
// namespace of resource nodes, each carrying total/used quantities and a set
// of per-owner reservations, plus the transactional token protocol used by a
// scheduling cycle to build up a tentative allocation before committing it.
package resource

import (
	"sync"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// Node is one resource node in the accountant's namespace. The "token" named
// in spec §3 ("reservations: mapping from token → u64") is, at the node
// level, the stable owner key that persists a committed reservation across
// cycles (an application id) — distinct from the per-cycle Token minted by
// OpenTransaction, which scopes a live transaction's tentative view. This
// split is what lets query_available "see through" an application's own
// current allocation while it is being re-evaluated.
type Node struct {
	mu sync.RWMutex

	path     respath.Path
	total    uint64
	used     uint64
	reserved map[string]uint64 // owner -> amount, sum(reserved) == used

	children map[string]*Node
}

func newNode(path respath.Path, total uint64) *Node {
	return &Node{
		path:     path,
		total:    total,
		reserved: make(map[string]uint64),
		children: make(map[string]*Node),
	}
}

func (n *Node) Path() respath.Path { return n.path }

func (n *Node) Total() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.total
}

func (n *Node) Used() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.used
}

// ReservationOf returns the amount currently committed to owner on this node.
func (n *Node) ReservationOf(owner string) uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reserved[owner]
}

// isLeaf reports whether the node has no children, i.e. it is a concrete
// resource instance rather than an aggregating container.
func (n *Node) isLeaf() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children) == 0
}

// setReservation overwrites owner's committed reservation on this node and
// recomputes used. Called only from commit, under the accountant's exclusive
// cycle lock.
func (n *Node) setReservation(owner string, amount uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if amount == 0 {
		delete(n.reserved, owner)
	} else {
		n.reserved[owner] = amount
	}
	var used uint64
	for _, v := range n.reserved {
		used += v
	}
	n.used = used
}
