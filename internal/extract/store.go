package extract

// ContractStore is a three-state cache from symbol identity to
// contract-or-sentinel.
//
// An entry is in one of three states:
//   - unresolved: absent from the map; resolution work is still required
//   - absent: resolved, definitely no contract (the sentinel)
//   - present: resolved to a real contract
//
// The three-state design is essential: a nullable-contract cache cannot
// tell "not contracted" from "not yet checked", which would force
// repeated expensive decompilation and proxy lookups. Presence of either
// a sentinel or a real contract means "already resolved" - a symbol is
// queried for decompilation/proxy lookup at most once.
//
// The store never evicts. Forgetting a sentinel would silently break the
// at-most-once invariant.
//
// Each store is owned by the extractor that created it; no locking.
type ContractStore[K ~string, T any] struct {
	entries map[K]storeEntry[T]
}

type storeEntry[T any] struct {
	contract *T // nil marks the sentinel
}

// NewContractStore creates an empty store.
func NewContractStore[K ~string, T any]() *ContractStore[K, T] {
	return &ContractStore[K, T]{entries: make(map[K]storeEntry[T])}
}

// Get looks up a symbol.
//
// Returns (nil, false) when unresolved, (nil, true) when resolved to the
// sentinel, and (contract, true) when resolved to a real contract.
// Callers must distinguish the first two to decide whether resolution
// work is still required.
func (s *ContractStore[K, T]) Get(key K) (*T, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.contract, true
}

// PutContract records a real contract for a symbol.
func (s *ContractStore[K, T]) PutContract(key K, contract *T) {
	s.entries[key] = storeEntry[T]{contract: contract}
}

// PutAbsent records the sentinel: resolved, definitely no contract.
func (s *ContractStore[K, T]) PutAbsent(key K) {
	s.entries[key] = storeEntry[T]{}
}

// Len returns the number of resolved symbols. Used by tests.
func (s *ContractStore[K, T]) Len() int {
	return len(s.entries)
}
