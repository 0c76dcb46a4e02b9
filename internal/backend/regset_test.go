package backend

import (
	"math/rand"
	"testing"
)

// TestRegSetAgainstReferenceSet replays a random sequence of
// insert/remove/contains/merge/minus/retain actions against both a
// RegSet and a map[Reg]bool oracle and asserts they never diverge
// — the same property the reg-set-fuzz target checks, reproduced here
// as a seeded deterministic run since this project does not run
// go test -fuzz.
func TestRegSetAgainstReferenceSet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	regs := make([]Reg, 64)
	for i := range regs {
		if i%2 == 0 {
			regs[i] = Reg{id: i, Class: ClassInt}
		} else {
			regs[i] = Reg{id: firstVirtual + i, Class: ClassInt}
		}
	}

	set := NewRegSet(ClassInt)
	ref := map[Reg]bool{}

	assertEqual := func() {
		t.Helper()
		for _, r := range regs {
			if set.Contains(r) != ref[r] {
				t.Fatalf("Contains(%v) = %v, want %v", r, set.Contains(r), ref[r])
			}
		}
		if set.Len() != len(members(ref)) {
			t.Fatalf("Len() = %d, want %d", set.Len(), len(members(ref)))
		}
	}

	for i := 0; i < 5000; i++ {
		r := regs[rng.Intn(len(regs))]
		switch rng.Intn(3) {
		case 0:
			set.Insert(r)
			ref[r] = true
		case 1:
			set.Remove(r)
			delete(ref, r)
		case 2:
			// no-op contains check, exercised by assertEqual below
		}
	}
	assertEqual()

	other := NewRegSet(ClassInt)
	otherRef := map[Reg]bool{}
	for i := 0; i < 1000; i++ {
		r := regs[rng.Intn(len(regs))]
		other.Insert(r)
		otherRef[r] = true
	}

	set.Merge(other)
	for r := range otherRef {
		ref[r] = true
	}
	assertEqual()

	set.Minus(other)
	for r := range otherRef {
		delete(ref, r)
	}
	assertEqual()

	cloned := set.Clone()
	if cloned.Len() != set.Len() {
		t.Fatalf("Clone() length mismatch: %d vs %d", cloned.Len(), set.Len())
	}
	for _, r := range set.Members() {
		if !cloned.Contains(r) {
			t.Fatalf("clone missing %v present in original", r)
		}
	}

	keep := func(r Reg) bool { return r.ID()%2 == 0 }
	set.Retain(keep)
	for r := range ref {
		if !keep(r) {
			delete(ref, r)
		}
	}
	assertEqual()
}

func members(m map[Reg]bool) []Reg {
	var out []Reg
	for r, present := range m {
		if present {
			out = append(out, r)
		}
	}
	return out
}

func TestRegSetVirtualAndPhysicalDoNotCollide(t *testing.T) {
	s := NewRegSet(ClassInt)
	phys := Reg{id: 5, Class: ClassInt}
	virt := Reg{id: firstVirtual + 5, Class: ClassInt}
	s.Insert(phys)
	if s.Contains(virt) {
		t.Fatalf("inserting physical reg %v leaked into virtual id space", phys)
	}
	s.Insert(virt)
	if !s.Contains(phys) || !s.Contains(virt) {
		t.Fatalf("both %v and %v should be present", phys, virt)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}
