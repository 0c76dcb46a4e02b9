package mir

// RPONumbers returns a block -> reverse-postorder-index map for fn,
// the numbering internal/analysis builds its dominator tree over.
func RPONumbers(fn *Function) map[*BasicBlock]int {
	rpo := fn.ReversePostorderFromEntry()
	out := make(map[*BasicBlock]int, len(rpo))
	for i, b := range rpo {
		out[b] = i
	}
	return out
}
