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

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	gocache "github.com/patrickmn/go-cache"
	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// Accountant is the long-lived, shared-mutable resource namespace. Per §5 it
// admits concurrent read queries between cycles; mutation (Reserve/Commit) is
// serialised by holding cycleMu for the lifetime of one live write token.
type Accountant struct {
	cycleMu sync.Mutex // held by the single live write token, §5

	mu    sync.RWMutex // guards root/index/types against concurrent reads
	root  *Node
	index map[string]*Node // resolved path key -> node

	txMu sync.Mutex
	tx   map[Token]*transaction

	// resolveCache memoises template -> resolved node-key set for the
	// lifetime of a cycle; Design Notes §9 "cache template -> resolved-set
	// for the cycle lifetime".
	resolveCache *gocache.Cache

	// externalCache is cleared wholesale on every commit and release. No
	// query reads from it: QueryTotal and QueryAvailable always walk the
	// node index.
	externalCache *lru.Cache
	extMu         sync.Mutex
}

// New builds an empty Accountant rooted at a SYSTEM node.
func New() *Accountant {
	root := newNode(respath.New(respath.Segment{Type: respath.System, ID: "0"}), 0)
	a := &Accountant{
		root:          root,
		index:         map[string]*Node{root.path.Key(): root},
		tx:            make(map[Token]*transaction),
		resolveCache:  gocache.New(5*time.Minute, 10*time.Minute),
		externalCache: lru.New(4096),
	}
	return a
}

// AddNode inserts a resolved child node under parent with the given total.
// Used by the platform-description loader to build the namespace; not part
// of the online scheduling path.
func (a *Accountant) AddNode(parent respath.Path, seg respath.Segment, total uint64) (*Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parentNode, ok := a.index[parent.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: parent %s", ErrUnknownPath, parent)
	}
	childPath := parent.Append(seg)
	if _, exists := parentNode.children[seg.String()]; exists {
		return nil, fmt.Errorf("resource: duplicate child id %s under %s", seg, parent)
	}
	child := newNode(childPath, total)
	parentNode.children[seg.String()] = child
	a.index[childPath.Key()] = child
	return child, nil
}

// resolve expands a (possibly templated) path to the set of matching
// resolved nodes by scanning the node index; the order of the result is
// not defined.
func (a *Accountant) resolve(path respath.Path) []*Node {
	if !path.IsTemplate() {
		if n, ok := a.index[path.Key()]; ok {
			return []*Node{n}
		}
		return nil
	}
	if cached, ok := a.resolveCache.Get(path.Key()); ok {
		keys := cached.([]string)
		out := make([]*Node, 0, len(keys))
		for _, k := range keys {
			if n, ok := a.index[k]; ok {
				out = append(out, n)
			}
		}
		return out
	}
	var out []*Node
	for _, n := range a.index {
		if n.isLeaf() || n.path.Len() == path.Len() {
			if path.Matches(n.path) {
				out = append(out, n)
			}
		}
	}
	keys := make([]string, len(out))
	for i, n := range out {
		keys[i] = n.path.Key()
	}
	a.resolveCache.Set(path.Key(), keys, gocache.DefaultExpiration)
	return out
}

// ResolveTemplate expands a (possibly templated) path to every matching
// resolved path in the namespace, used by the Binding Engine to enumerate
// domain ids and substitute wildcards (§4.3).
func (a *Accountant) ResolveTemplate(path respath.Path) []respath.Path {
	a.mu.RLock()
	defer a.mu.RUnlock()
	nodes := a.resolve(path)
	out := make([]respath.Path, len(nodes))
	for i, n := range nodes {
		out[i] = n.path
	}
	return out
}

// DomainPaths returns the full resolved path of every node of the given
// type, regardless of where in the namespace it sits. Used by the Binding
// Engine to enumerate binding domains of a given domain type (§4.3).
func (a *Accountant) DomainPaths(domainType respath.Type) []respath.Path {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []respath.Path
	for _, n := range a.index {
		if seg, ok := n.path.Last(); ok && seg.Type == domainType {
			out = append(out, n.path)
		}
	}
	return out
}

// QueryTotal returns sum(total) over the resolved node set matching path
// (template or resolved).
func (a *Accountant) QueryTotal(path respath.Path) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var sum uint64
	for _, n := range a.resolve(path) {
		sum += n.Total()
	}
	return sum
}

// QueryTotalBinding returns sum(total) over an explicit list of resolved
// paths (a binding set), e.g. the set a Binding Mask selects.
func (a *Accountant) QueryTotalBinding(paths []respath.Path) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var sum uint64
	for _, p := range paths {
		if n, ok := a.index[p.Key()]; ok {
			sum += n.Total()
		}
	}
	return sum
}

// QueryAvailable implements §4.1: total - used + reservations_owned_by(app),
// where "used" is read under the token's isolated view (committed usage plus
// whatever that same token has already tentatively reserved for other
// owners this cycle). requestingApp may be "" when no carve-out applies.
func (a *Accountant) QueryAvailable(path respath.Path, token Token, requestingApp string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tx := a.txUnsafe(token)
	var avail uint64
	for _, n := range a.resolve(path) {
		avail += singleNodeAvailable(n, tx, requestingApp)
	}
	return avail
}

// singleNodeAvailable computes one node's available quantity for owner
// under tx (possibly nil, meaning no live transaction), per §4.1's
// total - used + reservations_owned_by(owner) formula.
func singleNodeAvailable(n *Node, tx *transaction, owner string) uint64 {
	key := n.path.Key()
	committed := n.Used()
	ownCommitted := n.ReservationOf(owner)
	var pendingOthers uint64
	if tx != nil {
		pendingOthers = tx.pendingOthersTotal(key, owner)
	}
	total := n.Total()
	used := committed + pendingOthers
	if total+ownCommitted > used {
		return total + ownCommitted - used
	}
	return 0
}

// DomainAvailableByType sums the available quantity, under token, of every
// leafType node that sits structurally beneath domain — used by the
// Fairness contribution to compute per-domain, per-type availability
// (§4.4.4 max_bd_avail/min_bd_avail/system_avail).
func (a *Accountant) DomainAvailableByType(domain respath.Path, leafType respath.Type, token Token, owner string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tx := a.txUnsafe(token)
	var sum uint64
	for _, n := range a.index {
		seg, ok := n.path.Last()
		if !ok || seg.Type != leafType {
			continue
		}
		if !n.path.HasPrefix(domain) {
			continue
		}
		sum += singleNodeAvailable(n, tx, owner)
	}
	return sum
}

// CommittedReservation returns owner's already-committed reservation at
// path, ignoring any tentative change under a live token; used to roll back
// a partially-reserved candidate within a transaction (Reserve succeeded on
// some of its resolved requests, then failed on another).
func (a *Accountant) CommittedReservation(path respath.Path, owner string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.index[path.Key()]
	if !ok {
		return 0
	}
	return n.ReservationOf(owner)
}

func (a *Accountant) txUnsafe(token Token) *transaction {
	a.txMu.Lock()
	defer a.txMu.Unlock()
	return a.tx[token]
}

// CountResourceTypes returns the number of distinct leaf resource types
// present in the namespace; used as the normaliser of the reconfiguration
// index (§4.4.2).
func (a *Accountant) CountResourceTypes() uint16 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := make(map[respath.Type]struct{})
	for _, n := range a.index {
		if n.isLeaf() {
			if seg, ok := n.path.Last(); ok {
				seen[seg.Type] = struct{}{}
			}
		}
	}
	return uint16(len(seen))
}

// LeafTypes returns the set of distinct leaf resource types present in the
// namespace, used by the Fairness contribution to iterate per-type fair
// shares at level init (§4.4.4).
func (a *Accountant) LeafTypes() []respath.Type {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := make(map[respath.Type]struct{})
	for _, n := range a.index {
		if n.isLeaf() {
			if seg, ok := n.path.Last(); ok {
				seen[seg.Type] = struct{}{}
			}
		}
	}
	out := make([]respath.Type, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out
}

// OpenTransaction mints a new write token and acquires the cycle lock; there
// is at most one live write token at a time (§5).
func (a *Accountant) OpenTransaction() Token {
	a.cycleMu.Lock()
	token := newToken()
	a.txMu.Lock()
	a.tx[token] = newTransaction()
	a.txMu.Unlock()
	a.resolveCache.Flush()
	klog.V(4).Infof("resource: opened transaction %s", token)
	return token
}

// Reserve sets the tentative reservation for (path, owner) under token to
// amount, overwriting any prior tentative value for that owner on that node.
// path must be fully resolved. Returns ErrOverCapacity if granting would
// push used above total on any matching node.
func (a *Accountant) Reserve(token Token, path respath.Path, amount uint64, owner string) error {
	if path.IsTemplate() {
		return fmt.Errorf("%w: %s", ErrTemplatePath, path)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	a.txMu.Lock()
	tx, ok := a.tx[token]
	a.txMu.Unlock()
	if !ok {
		return ErrUnknownToken
	}

	n, ok := a.index[path.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	key := n.path.Key()
	committed := n.Used()
	ownCommitted := n.ReservationOf(owner)
	pendingOthers := tx.pendingOthersTotal(key, owner)
	// A pending entry replaces that owner's committed reservation at commit,
	// so its committed amount is not counted a second time.
	var replaced uint64
	for o := range tx.pending[key] {
		if o != owner {
			replaced += n.ReservationOf(o)
		}
	}
	projected := committed - ownCommitted - replaced + pendingOthers + amount
	if projected > n.Total() {
		return fmt.Errorf("%w: %s requested %d, projected used %d > total %d",
			ErrOverCapacity, path, amount, projected, n.Total())
	}
	tx.set(key, owner, amount)
	return nil
}

// ReleaseOwner records, under token, that owner should hold zero reservation
// on every node it currently commits to (used when an application is being
// transitioned to BLOCKED and must give up its resources at commit).
func (a *Accountant) ReleaseOwner(token Token, owner string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	a.txMu.Lock()
	tx, ok := a.tx[token]
	a.txMu.Unlock()
	if !ok {
		return
	}
	for key, n := range a.index {
		if n.ReservationOf(owner) > 0 {
			tx.set(key, owner, 0)
		}
	}
}

// Release aborts token: every tentative reservation vanishes, no global
// state changes, and the cycle lock is released.
func (a *Accountant) Release(token Token) {
	a.txMu.Lock()
	delete(a.tx, token)
	a.txMu.Unlock()
	a.extMu.Lock()
	a.externalCache.Clear()
	a.extMu.Unlock()
	a.cycleMu.Unlock()
	klog.V(4).Infof("resource: aborted transaction %s", token)
}

// Commit applies every tentative reservation recorded under token to the
// namespace and retires the token.
func (a *Accountant) Commit(token Token) error {
	a.txMu.Lock()
	tx, ok := a.tx[token]
	delete(a.tx, token)
	a.txMu.Unlock()
	if !ok {
		return ErrUnknownToken
	}

	a.mu.Lock()
	for nodeKey, owners := range tx.pending {
		n, ok := a.index[nodeKey]
		if !ok {
			continue
		}
		for owner, amount := range owners {
			n.setReservation(owner, amount)
		}
	}
	a.mu.Unlock()

	a.extMu.Lock()
	a.externalCache.Clear()
	a.extMu.Unlock()

	a.cycleMu.Unlock()
	klog.V(3).Infof("resource: committed transaction %s (%d nodes touched)", token, len(tx.pending))
	return nil
}
