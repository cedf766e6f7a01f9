package ir

// Builder is a thin convenience wrapper over a single block, giving the
// materializer (pkg/stage) and the stitcher (pkg/stitch) the named
// create-call/load/store/alloca/compare/branch/return surface spec.md §3
// requires of the IR facade, instead of spelling out Op/Typ/Operands at every
// call site.
type Builder struct {
	Block *Block
}

// NewBuilder returns a Builder appending to b.
func NewBuilder(b *Block) Builder { return Builder{Block: b} }

func (bd Builder) BuildAlloca(typ Type) *Instruction {
	return bd.Block.Append(OpAlloca, Ptr, &Const{Typ: typ, Imm: int64(typ.Size())})
}

func (bd Builder) BuildLoad(typ Type, addr Value) *Instruction {
	return bd.Block.Append(OpLoad, typ, addr)
}

func (bd Builder) BuildStore(addr, val Value) *Instruction {
	return bd.Block.Append(OpStore, I1, addr, val)
}

func (bd Builder) BuildCall(callee *Global, args ...Value) *Instruction {
	operands := append([]Value{callee}, args...)
	return bd.Block.Append(OpCall, callee.Typ, operands...)
}

func (bd Builder) BuildICmp(op Op, lhs, rhs Value) *Instruction {
	if !op.IsCompare() {
		panic("ir: BuildICmp called with a non-compare op")
	}
	return bd.Block.Append(op, I1, lhs, rhs)
}

func (bd Builder) BuildBr(target *Block) *Instruction {
	return bd.Block.Append(OpBr, I1, target)
}

func (bd Builder) BuildCondBr(cond Value, then, els *Block) *Instruction {
	return bd.Block.Append(OpCondBr, I1, cond, then, els)
}

func (bd Builder) BuildRet(val Value) *Instruction {
	if val == nil {
		return bd.Block.Append(OpRet, I1)
	}
	return bd.Block.Append(OpRet, I32, val)
}

// BuildPhi creates a φ-node. incoming must list (value, predecessor) pairs in
// the same order.
func (bd Builder) BuildPhi(typ Type, values []Value, blocks []*Block) *Instruction {
	if len(values) != len(blocks) {
		panic("ir: BuildPhi: values/blocks length mismatch")
	}
	i := bd.Block.Append(OpPhi, typ, values...)
	i.IncomingBlocks = append([]*Block(nil), blocks...)
	return i
}
