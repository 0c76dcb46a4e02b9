package analysis

import "github.com/sysyrv/sysyrv/internal/mir"

// EffectRange is a symbolic description of what memory an
// instruction (or a whole function) might touch: either "All" (opaque
// call, parameter-derived unknown) or the precise set of base+GEP
// operands it reads or writes.
type EffectRange struct {
	All bool
	Bases map[mir.Operand]bool // only meaningful when !All
}

func AllEffect() EffectRange { return EffectRange{All: true} }

func SomeEffect(bases ...mir.Operand) EffectRange {
	e := EffectRange{Bases: map[mir.Operand]bool{}}
	for _, b := range bases {
		e.Bases[b] = true
	}
	return e
}

func (e EffectRange) Union(o EffectRange) EffectRange {
	if e.All || o.All {
		return AllEffect()
	}
	out := SomeEffect()
	for b := range e.Bases {
		out.Bases[b] = true
	}
	for b := range o.Bases {
		out.Bases[b] = true
	}
	return out
}

// CanAlias implements the alias predicate: both All, or both
// Some and some pair of bases can alias.
func (e EffectRange) CanAlias(o EffectRange) bool {
	if e.All && o.All {
		return true
	}
	if e.All || o.All {
		return false
	}
	for a := range e.Bases {
		for b := range o.Bases {
			if OperandsCanAlias(a, b) {
				return true
			}
		}
	}
	return false
}

// OperandsCanAlias implements the base-operand aliasing rule:
// after splitting off a GEP prefix, bases alias per their kind
// (parameters may alias anything of matching base type; two globals
// alias iff identical; two allocas alias iff identical), and every
// commonly-indexed dimension must be able to hold equal indices.
func OperandsCanAlias(a, b mir.Operand) bool {
	baseA, idxA := splitGEPPrefix(a)
	baseB, idxB := splitGEPPrefix(b)

	if !basesCanAlias(baseA, baseB) {
		return false
	}
	n := len(idxA)
	if len(idxB) < n {
		n = len(idxB)
	}
	for i := 0; i < n; i++ {
		if !indicesCanEqual(idxA[i], idxB[i]) {
			return false
		}
	}
	return true
}

func basesCanAlias(a, b mir.Operand) bool {
	if a == b {
		return true
	}
	ga, aIsGlobal := a.(*mir.Global)
	gb, bIsGlobal := b.(*mir.Global)
	if aIsGlobal && bIsGlobal {
		return ga == gb
	}
	aAlloca, aIsAlloca := asAlloca(a)
	bAlloca, bIsAlloca := asAlloca(b)
	if aIsAlloca && bIsAlloca {
		return aAlloca == bAlloca
	}
	_, aIsParam := a.(*mir.Param)
	_, bIsParam := b.(*mir.Param)
	if aIsParam || bIsParam {
		return a.Type().Equal(b.Type())
	}
	return aIsGlobal == bIsGlobal && aIsAlloca == bIsAlloca
}

func asAlloca(op mir.Operand) (*mir.Instruction, bool) {
	inst, ok := op.(*mir.Instruction)
	if ok && inst.Kind == mir.OpAlloca {
		return inst, true
	}
	return nil, false
}

func indicesCanEqual(a, b mir.Operand) bool {
	ca, aConst := a.(*mir.Const)
	cb, bConst := b.(*mir.Const)
	if aConst && bConst {
		return ca.AsInt() == cb.AsInt()
	}
	return true // conservative: anything else may be equal
}

// splitGEPPrefix walks op back through any GetElementPtr chain,
// returning the ultimate base operand and the flattened index list.
func splitGEPPrefix(op mir.Operand) (base mir.Operand, indices []mir.Operand) {
	for {
		inst, ok := op.(*mir.Instruction)
		if !ok || inst.Kind != mir.OpGetElementPtr {
			return op, indices
		}
		indices = append(inst.Operands()[1:], indices...)
		op = inst.Operand(0)
	}
}

// InstEffect returns the effect range of a single memory-touching
// instruction. Non-memory instructions have an empty
// (Some with no bases) range — they touch nothing.
func InstEffect(fn *mir.Function, funcEffect map[*mir.Function]EffectRange, i *mir.Instruction) EffectRange {
	switch i.Kind {
	case mir.OpLoad, mir.OpStore:
		base, _ := splitGEPPrefix(i.Operand(i.NumOperands() - 1))
		return SomeEffect(base)
	case mir.OpCall:
		if e, ok := funcEffect[i.Callee]; ok {
			return e
		}
		return SomeEffect()
	default:
		return SomeEffect()
	}
}

// FunctionEffects computes each function's effect range by
// fixed-point iteration over the call graph: a function's
// effect is the union of its instructions' effects, with a recursive
// call contributing Some(nil) until its own effect stabilizes.
func FunctionEffects(m *mir.Module) map[*mir.Function]EffectRange {
	effects := map[*mir.Function]EffectRange{}
	for _, fn := range m.Functions {
		effects[fn] = SomeEffect()
	}
	changed := true
	for changed {
		changed = false
		for _, fn := range m.Functions {
			if fn.IsDeclaration() {
				// Library functions (getint/putarray/...) are assumed
				// to touch unknown memory via their pointer arguments.
				effects[fn] = effectOfDeclaration(fn)
				continue
			}
			acc := SomeEffect()
			for _, b := range fn.Blocks() {
				for inst := b.Front(); inst != nil; inst = inst.Next() {
					acc = acc.Union(InstEffect(fn, effects, inst))
				}
			}
			if !effectsEqual(acc, effects[fn]) {
				effects[fn] = acc
				changed = true
			}
		}
	}
	return effects
}

// effectOfDeclaration approximates an external function's effect: if
// it takes a pointer parameter (getarray/putarray/...), it may touch
// anything reachable through it, so it is conservatively All.
func effectOfDeclaration(fn *mir.Function) EffectRange {
	for _, p := range fn.Params {
		if p.Ty.IsPointer() {
			return AllEffect()
		}
	}
	return SomeEffect()
}

func effectsEqual(a, b EffectRange) bool {
	if a.All != b.All {
		return false
	}
	if a.All {
		return true
	}
	if len(a.Bases) != len(b.Bases) {
		return false
	}
	for k := range a.Bases {
		if !b.Bases[k] {
			return false
		}
	}
	return true
}
