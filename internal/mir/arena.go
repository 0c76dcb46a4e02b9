package mir

// Arena is the backing store for one kind of IR node. Go
// is garbage collected, so "the entire arena is dropped with the
// program" falls out for free once the owning *Builder becomes
// unreachable; what Arena buys us instead is stable-pointer
// allocation: nodes are handed out as pointers that are never moved
// (no slice-of-values churn invalidating a handle on growth, as would
// happen with a []T+index scheme) and the arena retains a flat,
// ordered view of every node it ever produced for iteration
// (diagnostics, textual dumps, "dump every instruction in id order").
//
// This sidesteps reference counting entirely: handles are raw *T
// pointers, comparable and hashable by identity, and the cyclic
// graphs this forms (def-use / use-def, cfg preds/succs, phi / block)
// are ordinary Go pointer cycles that the garbage collector — not us
// — is responsible for collecting as a unit.
type Arena[T any] struct {
	nodes []*T
}

// Alloc allocates a new T on the heap, owned by the arena, and
// returns its stable handle.
func (a *Arena[T]) Alloc() *T {
	n := new(T)
	a.nodes = append(a.nodes, n)
	return n
}

// All returns every node allocated from this arena, in allocation
// order. The slice is owned by the arena; callers must not retain or
// mutate it across further allocations.
func (a *Arena[T]) All() []*T {
	return a.nodes
}

func (a *Arena[T]) Len() int { return len(a.nodes) }
