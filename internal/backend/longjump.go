package backend

// maxBranchRange is the estimated byte distance beyond which a
// conditional branch is rewritten. Block sizes are only estimated, at 4
// bytes per instruction with no compressed-instruction accounting. The
// value is larger than the rv64 B-type encoding's +-4KB reach, so a
// branch estimated between 4KB and maxBranchRange away is left as is.
const maxBranchRange = 20000

var invertedBranch = map[Op]Op{
	OpBeq: OpBne, OpBne: OpBeq,
	OpBlt: OpBge, OpBge: OpBlt,
	OpBle: OpBgt, OpBgt: OpBle,
	OpBltu: OpBgeu, OpBgeu: OpBltu,
	OpBleu: OpBgtu, OpBgtu: OpBleu,
	OpBeqz: OpBnez, OpBnez: OpBeqz,
}

// FixLongJumps rewrites every conditional branch whose target is
// estimated to lie beyond maxBranchRange bytes into an
// inverted-branch-over-an-unconditional-jump sequence: the inverted
// branch targets a single injected block holding a `j` to the block's
// old jmp target, and the block's own trailing jmp is retargeted to the
// far branch target. The injected block is always within range of the
// branch since it sits immediately after it in layout. Iterates to a
// fixed point since inserting skip blocks shifts every later offset.
func FixLongJumps(fn *Function) {
	for {
		offsets := blockOffsets(fn)
		fixed := true
		for i := 0; i < len(fn.Blocks); i++ {
			bb := fn.Blocks[i]
			if len(bb.Insts) < 2 {
				continue
			}
			branch := bb.Insts[len(bb.Insts)-2]
			jump := bb.Insts[len(bb.Insts)-1]
			if !branch.Op.IsBranch() || jump.Op != OpJ {
				continue
			}
			dist := offsets[branch.Target] - offsets[bb]
			if dist < 0 {
				dist = -dist
			}
			if dist <= maxBranchRange {
				continue
			}
			farTarget := branch.Target
			nearTarget := jump.Target
			skip := &Block{Label: bb.Label + ".lj", Insts: []*Instruction{
				{Op: OpJ, Target: nearTarget},
			}}
			branch.Op = invertedBranch[branch.Op]
			branch.Target = skip
			jump.Target = farTarget // J's huge range makes the far target safe here

			fn.Blocks = append(fn.Blocks[:i+1], append([]*Block{skip}, fn.Blocks[i+1:]...)...)
			fixed = false
			break // offsets are now stale; restart the scan
		}
		if fixed {
			return
		}
	}
}

func blockOffsets(fn *Function) map[*Block]int64 {
	offsets := make(map[*Block]int64, len(fn.Blocks))
	var pos int64
	for _, bb := range fn.Blocks {
		offsets[bb] = pos
		pos += int64(len(bb.Insts)) * 4
	}
	return offsets
}
