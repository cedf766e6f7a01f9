package ir

// Block is a basic block: a straight-line run of instructions ending in
// exactly one terminator (spec.md §3).
type Block struct {
	Name   string
	Proc   *Proc
	Instrs []*Instruction
}

func (*Block) isValue() {}

func (b *Block) String() string { return "%" + b.Name }

// Instructions returns b's instructions in order.
func (b *Block) Instructions() []*Instruction { return b.Instrs }

// Terminator returns the block's terminator instruction, or nil if the block
// is not yet closed.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Append creates a new instruction and appends it to the block.
func (b *Block) Append(op Op, typ Type, operands ...Value) *Instruction {
	i := &Instruction{Op: op, Typ: typ, Operands: operands, Block: b}
	b.Instrs = append(b.Instrs, i)
	return i
}

// Insert appends an already-built (e.g. cloned) instruction to the block, in
// origin order — the "insert in blocks" phase of the materializer's
// three-phase pipeline (spec.md §9).
func (b *Block) Insert(i *Instruction) *Instruction {
	i.Block = b
	b.Instrs = append(b.Instrs, i)
	return i
}

// InsertBefore inserts i immediately before at, which must belong to b.
func (b *Block) InsertBefore(at, i *Instruction) {
	b.insertAt(at, i, 0)
}

// InsertAfter inserts i immediately after at, which must belong to b.
func (b *Block) InsertAfter(at, i *Instruction) {
	b.insertAt(at, i, 1)
}

func (b *Block) insertAt(at, i *Instruction, offset int) {
	for idx, existing := range b.Instrs {
		if existing == at {
			pos := idx + offset
			b.Instrs = append(b.Instrs[:pos], append([]*Instruction{i}, b.Instrs[pos:]...)...)
			i.Block = b
			return
		}
	}
	panic("ir: InsertBefore/After: target instruction not found in block")
}

// Erase removes i from b.
func (b *Block) Erase(i *Instruction) {
	for idx, existing := range b.Instrs {
		if existing == i {
			b.Instrs = append(b.Instrs[:idx], b.Instrs[idx+1:]...)
			return
		}
	}
}
