package ir

// Op is an instruction opcode. The set is deliberately small: just enough to
// express a scalar loop body, its induction variable, memory access, and
// control flow — the shapes spec.md §3-§4 talk about (φ-nodes, terminators,
// compares, loads/stores, calls).
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpICmpEQ
	OpICmpNE
	OpICmpSLT
	OpICmpSLE
	OpICmpSGT
	OpICmpSGE
	OpLoad
	OpStore
	OpAlloca
	OpPhi
	OpCall
	OpBr
	OpCondBr
	OpRet
)

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool {
	switch op {
	case OpBr, OpCondBr, OpRet:
		return true
	default:
		return false
	}
}

// IsCompare reports whether op is an integer comparison.
func (op Op) IsCompare() bool {
	switch op {
	case OpICmpEQ, OpICmpNE, OpICmpSLT, OpICmpSLE, OpICmpSGT, OpICmpSGE:
		return true
	default:
		return false
	}
}

func (op Op) String() string {
	names := [...]string{
		"add", "sub", "mul", "and", "or", "xor", "shl", "shr",
		"icmp.eq", "icmp.ne", "icmp.slt", "icmp.sle", "icmp.sgt", "icmp.sge",
		"load", "store", "alloca", "phi", "call", "br", "condbr", "ret",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "op(?)"
}
