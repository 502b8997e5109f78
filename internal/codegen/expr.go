// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import (
	"fmt"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/types"
)

// genExpr compiles n, leaving its value in exactly one newly reserved
// register-stack slot (an int register r10..r15 or, for a flonum result,
// an xmm8..xmm13 register), and returns that slot's index.
func (g *Generator) genExpr(n *ast.Node) (int, error) {
	switch n.Kind {
	case ast.NdNum:
		return g.genLoadConst(n)
	case ast.NdVar:
		return g.genLoadVar(n)
	case ast.NdAddr:
		return g.genAddr(n.LHS)
	case ast.NdDeref:
		idx, err := g.genExpr(n.LHS)
		if err != nil {
			return 0, err
		}
		return g.loadFromAddr(idx, n.Type)
	case ast.NdMember:
		idx, err := g.genAddr(n)
		if err != nil {
			return 0, err
		}
		return g.loadFromAddr(idx, n.Type)
	case ast.NdAssign:
		return g.genAssign(n)
	case ast.NdComma:
		i, err := g.genExpr(n.LHS)
		if err != nil {
			return 0, err
		}
		g.pop1(i)
		return g.genExpr(n.RHS)
	case ast.NdCond:
		return g.genCond(n)
	case ast.NdLogAnd:
		return g.genLogAnd(n)
	case ast.NdLogOr:
		return g.genLogOr(n)
	case ast.NdNot:
		return g.genNot(n)
	case ast.NdNeg:
		return g.genNeg(n)
	case ast.NdBitNot:
		return g.genBitNot(n)
	case ast.NdCast:
		return g.genCast(n)
	case ast.NdFuncall:
		return g.genCall(n)
	case ast.NdVaStart:
		return g.genVaStart(n)
	case ast.NdStmtExpr:
		return g.genStmtExpr(n)
	case ast.NdEq, ast.NdNe, ast.NdLt, ast.NdLe:
		return g.genCompare(n)
	case ast.NdAdd, ast.NdSub, ast.NdMul, ast.NdDiv, ast.NdMod,
		ast.NdBitAnd, ast.NdBitOr, ast.NdBitXor, ast.NdShl, ast.NdShr:
		return g.genBinary(n)
	}
	return 0, &Error{Msg: "codegen: unsupported expression node"}
}

// pop1 discards the register-stack slot idx occupies, without emitting
// any instruction: used when an expression's value (e.g. the left side
// of a comma operator) is evaluated only for its side effect.
func (g *Generator) pop1(idx int) {
	if idx == g.top-1 {
		g.pop()
	}
}

func (g *Generator) genLoadConst(n *ast.Node) (int, error) {
	idx, err := g.push()
	if err != nil {
		return 0, err
	}
	if n.Type.IsFlonum() {
		reg := floatReg(idx)
		label := g.floatLabel(n)
		if n.Type.Size == 4 {
			g.emit("movss %s, [rip+%s]", reg, label)
		} else {
			g.emit("movsd %s, [rip+%s]", reg, label)
		}
		return idx, nil
	}
	g.emit("mov %s, %d", intReg(idx, 8), n.Val)
	return idx, nil
}

// genAddr computes the address of an lvalue, leaving it in an integer
// register-stack slot. Anything that is not an lvalue is a fatal codegen
// error (§7).
func (g *Generator) genAddr(n *ast.Node) (int, error) {
	switch n.Kind {
	case ast.NdVar:
		idx, err := g.push()
		if err != nil {
			return 0, err
		}
		g.emitVarAddr(n.VarRef, intReg(idx, 8))
		return idx, nil
	case ast.NdDeref:
		return g.genExpr(n.LHS)
	case ast.NdMember:
		idx, err := g.genAddr(n.LHS)
		if err != nil {
			return 0, err
		}
		if n.Member.Offset != 0 {
			g.emit("add %s, %d", intReg(idx, 8), n.Member.Offset)
		}
		return idx, nil
	case ast.NdComma:
		i, err := g.genExpr(n.LHS)
		if err != nil {
			return 0, err
		}
		g.pop1(i)
		return g.genAddr(n.RHS)
	}
	return 0, &Error{Msg: "codegen: not an lvalue"}
}

func (g *Generator) emitVarAddr(v *ast.Var, reg string) {
	if v.IsLocal {
		g.emit("lea %s, [rbp%+d]", reg, v.Offset)
	} else {
		g.emit("lea %s, [rip+%s]", reg, v.Name)
	}
}

func (g *Generator) genLoadVar(n *ast.Node) (int, error) {
	if n.Type.Kind == types.Array || n.Type.Kind == types.Struct || n.Type.Kind == types.Union {
		return g.genAddr(n)
	}
	idx, err := g.genAddr(n)
	if err != nil {
		return 0, err
	}
	return g.loadFromAddr(idx, n.Type)
}

// loadFromAddr dereferences the address held in the integer slot addrIdx,
// replacing its contents with the loaded value (in an int or float
// register at the same slot index, per §4.5's width/signedness rules).
func (g *Generator) loadFromAddr(addrIdx int, ty *types.Type) (int, error) {
	addr := intReg(addrIdx, 8)
	if ty.Kind == types.Array || ty.Kind == types.Struct || ty.Kind == types.Union {
		return addrIdx, nil
	}
	if ty.IsFlonum() {
		reg := floatReg(addrIdx)
		if ty.Size == 4 {
			g.emit("movss %s, [%s]", reg, addr)
		} else {
			g.emit("movsd %s, [%s]", reg, addr)
		}
		return addrIdx, nil
	}

	dst := intReg(addrIdx, 8)
	switch {
	case ty.Size == 1 && ty.Unsigned:
		g.emit("movzx %s, byte ptr [%s]", dst, addr)
	case ty.Size == 1:
		g.emit("movsx %s, byte ptr [%s]", dst, addr)
	case ty.Size == 2 && ty.Unsigned:
		g.emit("movzx %s, word ptr [%s]", dst, addr)
	case ty.Size == 2:
		g.emit("movsx %s, word ptr [%s]", dst, addr)
	case ty.Size == 4 && ty.Unsigned:
		g.emit("mov %s, dword ptr [%s]", intReg(addrIdx, 4), addr)
	case ty.Size == 4:
		g.emit("movsxd %s, dword ptr [%s]", dst, addr)
	default:
		g.emit("mov %s, [%s]", dst, addr)
	}
	return addrIdx, nil
}

func (g *Generator) genAssign(n *ast.Node) (int, error) {
	if n.LHS.Type.Kind == types.Struct || n.LHS.Type.Kind == types.Union {
		return g.genStructAssign(n)
	}

	addrIdx, err := g.genAddr(n.LHS)
	if err != nil {
		return 0, err
	}
	valIdx, err := g.genExpr(n.RHS)
	if err != nil {
		return 0, err
	}
	g.storeAt(addrIdx, valIdx, n.Type)
	g.pop() // release the address slot
	return valIdx, nil
}

func (g *Generator) storeAt(addrIdx, valIdx int, ty *types.Type) {
	addr := intReg(addrIdx, 8)
	if ty.IsFlonum() {
		reg := floatReg(valIdx)
		if ty.Size == 4 {
			g.emit("movss [%s], %s", addr, reg)
		} else {
			g.emit("movsd [%s], %s", addr, reg)
		}
		return
	}
	switch ty.Size {
	case 1:
		g.emit("mov byte ptr [%s], %s", addr, intReg(valIdx, 1))
	case 2:
		g.emit("mov word ptr [%s], %s", addr, intReg(valIdx, 2))
	case 4:
		g.emit("mov dword ptr [%s], %s", addr, intReg(valIdx, 4))
	default:
		g.emit("mov [%s], %s", addr, intReg(valIdx, 8))
	}
}

// genStructAssign copies a struct/union byte by byte, the way §4.5 names
// as the one exception to scalar load/store symmetry.
func (g *Generator) genStructAssign(n *ast.Node) (int, error) {
	dstIdx, err := g.genAddr(n.LHS)
	if err != nil {
		return 0, err
	}
	srcIdx, err := g.genAddr(n.RHS)
	if err != nil {
		return 0, err
	}
	dst, src := intReg(dstIdx, 8), intReg(srcIdx, 8)
	tmpIdx, err := g.push()
	if err != nil {
		return 0, err
	}
	tmp := intReg(tmpIdx, 1)
	for off := 0; off < n.Type.Size; off++ {
		g.emit("mov %s, byte ptr [%s+%d]", tmp, src, off)
		g.emit("mov byte ptr [%s+%d], %s", dst, off, tmp)
	}
	g.pop() // tmp
	g.pop() // src
	return dstIdx, nil
}

func (g *Generator) genNot(n *ast.Node) (int, error) {
	idx, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	reg := intReg(idx, sizeOf(n.LHS.Type))
	g.emit("cmp %s, 0", reg)
	g.emit("sete al")
	g.emit("movzx %s, al", intReg(idx, 8))
	return idx, nil
}

func (g *Generator) genNeg(n *ast.Node) (int, error) {
	idx, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	if n.Type.IsFlonum() {
		reg := floatReg(idx)
		// Negate via XOR with the sign bit, the standard SSE idiom.
		label := g.signMaskLabel(n.Type.Size == 8)
		if n.Type.Size == 4 {
			g.emit("xorps %s, [rip+%s]", reg, label)
		} else {
			g.emit("xorpd %s, [rip+%s]", reg, label)
		}
		return idx, nil
	}
	g.emit("neg %s", intReg(idx, sizeOf(n.Type)))
	return idx, nil
}

func (g *Generator) genBitNot(n *ast.Node) (int, error) {
	idx, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	g.emit("not %s", intReg(idx, sizeOf(n.Type)))
	return idx, nil
}

func (g *Generator) genCast(n *ast.Node) (int, error) {
	idx, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	from, to := n.LHS.Type, n.Type
	if to == nil || from == nil {
		return idx, nil
	}
	switch {
	case to.IsFlonum() && from.IsFlonum():
		if from.Size != to.Size {
			if to.Size == 8 {
				g.emit("cvtss2sd %s, %s", floatReg(idx), floatReg(idx))
			} else {
				g.emit("cvtsd2ss %s, %s", floatReg(idx), floatReg(idx))
			}
		}
	case to.IsFlonum():
		if to.Size == 4 {
			g.emit("cvtsi2ss %s, %s", floatReg(idx), intReg(idx, 8))
		} else {
			g.emit("cvtsi2sd %s, %s", floatReg(idx), intReg(idx, 8))
		}
	case from.IsFlonum():
		if from.Size == 4 {
			g.emit("cvttss2si %s, %s", intReg(idx, 8), floatReg(idx))
		} else {
			g.emit("cvttsd2si %s, %s", intReg(idx, 8), floatReg(idx))
		}
	case to.Kind == types.Bool:
		g.emit("cmp %s, 0", intReg(idx, sizeOf(from)))
		g.emit("setne al")
		g.emit("movzx %s, al", intReg(idx, 8))
	default:
		truncateInt(g, idx, from, to)
	}
	return idx, nil
}

func truncateInt(g *Generator, idx int, from, to *types.Type) {
	if to.Size <= from.Size {
		return
	}
	dst := intReg(idx, 8)
	src := intReg(idx, from.Size)
	switch {
	case from.Size == 1 && from.Unsigned:
		g.emit("movzx %s, %s", dst, src)
	case from.Size == 1:
		g.emit("movsx %s, %s", dst, src)
	case from.Size == 2 && from.Unsigned:
		g.emit("movzx %s, %s", dst, src)
	case from.Size == 2:
		g.emit("movsx %s, %s", dst, src)
	case from.Size == 4 && from.Unsigned:
		g.emit("mov %s, %s", intReg(idx, 4), src)
	case from.Size == 4:
		g.emit("movsxd %s, %s", dst, src)
	}
}

func sizeOf(ty *types.Type) int {
	if ty == nil {
		return 8
	}
	if ty.Size == 1 || ty.Size == 2 || ty.Size == 4 || ty.Size == 8 {
		return ty.Size
	}
	return 8
}

func (g *Generator) genBinary(n *ast.Node) (int, error) {
	li, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	ri, err := g.genExpr(n.RHS)
	if err != nil {
		return 0, err
	}

	if n.Type.IsFlonum() {
		return g.genFloatBinary(n, li, ri)
	}

	size := sizeOf(n.Type)
	l, r := intReg(li, size), intReg(ri, size)

	switch n.Kind {
	case ast.NdAdd:
		g.emit("add %s, %s", l, r)
	case ast.NdSub:
		g.emit("sub %s, %s", l, r)
	case ast.NdMul:
		g.emit("imul %s, %s", l, r)
	case ast.NdDiv, ast.NdMod:
		g.genDivMod(n, li, ri, size)
	case ast.NdBitAnd:
		g.emit("and %s, %s", l, r)
	case ast.NdBitOr:
		g.emit("or %s, %s", l, r)
	case ast.NdBitXor:
		g.emit("xor %s, %s", l, r)
	case ast.NdShl:
		g.emit("mov cl, %s", intReg(ri, 1))
		g.emit("sal %s, cl", l)
	case ast.NdShr:
		g.emit("mov cl, %s", intReg(ri, 1))
		if n.Type.Unsigned {
			g.emit("shr %s, cl", l)
		} else {
			g.emit("sar %s, cl", l)
		}
	}
	g.pop() // release rhs slot
	return li, nil
}

// genDivMod routes the dividend/divisor through rax/rdx, the only
// registers idiv/div can use, then copies the quotient or remainder back
// into the lhs slot.
func (g *Generator) genDivMod(n *ast.Node, li, ri, size int) {
	l, r := intReg(li, size), intReg(ri, size)
	raxN := regAtSize("rax", size)
	g.emit("mov %s, %s", raxN, l)
	if n.Type.Unsigned {
		g.emit("xor edx, edx")
		g.emit("div %s", r)
	} else {
		if size == 8 {
			g.emit("cqo")
		} else {
			g.emit("cdq")
		}
		g.emit("idiv %s", r)
	}
	if n.Kind == ast.NdDiv {
		g.emit("mov %s, %s", l, raxN)
	} else {
		g.emit("mov %s, %s", l, regAtSize("rdx", size))
	}
}

func regAtSize(reg64 string, size int) string {
	table := map[string][4]string{
		"rax": {"al", "ax", "eax", "rax"},
		"rdx": {"dl", "dx", "edx", "rdx"},
	}
	forms, ok := table[reg64]
	if !ok {
		return reg64
	}
	switch size {
	case 1:
		return forms[0]
	case 2:
		return forms[1]
	case 4:
		return forms[2]
	default:
		return forms[3]
	}
}

func (g *Generator) genFloatBinary(n *ast.Node, li, ri int) (int, error) {
	l, r := floatReg(li), floatReg(ri)
	double := n.Type.Size == 8
	suffix := "ss"
	if double {
		suffix = "sd"
	}
	switch n.Kind {
	case ast.NdAdd:
		g.emit("add%s %s, %s", suffix, l, r)
	case ast.NdSub:
		g.emit("sub%s %s, %s", suffix, l, r)
	case ast.NdMul:
		g.emit("mul%s %s, %s", suffix, l, r)
	case ast.NdDiv:
		g.emit("div%s %s, %s", suffix, l, r)
	}
	g.pop()
	return li, nil
}

func (g *Generator) genCompare(n *ast.Node) (int, error) {
	li, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	ri, err := g.genExpr(n.RHS)
	if err != nil {
		return 0, err
	}

	cmpTy := n.LHS.Type
	if cmpTy.IsFlonum() {
		suffix := "ss"
		if cmpTy.Size == 8 {
			suffix = "sd"
		}
		g.emit("ucomi%s %s, %s", suffix, floatReg(li), floatReg(ri))
	} else {
		size := sizeOf(cmpTy)
		g.emit("cmp %s, %s", intReg(li, size), intReg(ri, size))
	}
	g.pop() // release rhs slot

	setcc := g.setCC(n.Kind, cmpTy)
	g.emit("%s al", setcc)
	g.emit("movzx %s, al", intReg(li, 8))
	return li, nil
}

func (g *Generator) setCC(kind ast.NodeKind, ty *types.Type) string {
	unsigned := ty.Unsigned || ty.IsFlonum()
	switch kind {
	case ast.NdEq:
		return "sete"
	case ast.NdNe:
		return "setne"
	case ast.NdLt:
		if unsigned {
			return "setb"
		}
		return "setl"
	case ast.NdLe:
		if unsigned {
			return "setbe"
		}
		return "setle"
	}
	return "sete"
}

// genCond compiles the ternary operator, sharing the same monotonic
// sequence the parser assigns to if/for/do/switch so every generated
// function draws its label suffixes from one counter (n.SeqID, stamped at
// parse time in conditional()).
func (g *Generator) genCond(n *ast.Node) (int, error) {
	id := n.SeqID
	ci, err := g.genExpr(n.Cond)
	if err != nil {
		return 0, err
	}
	g.emit("cmp %s, 0", intReg(ci, sizeOf(n.Cond.Type)))
	g.pop()
	g.emit("je .L.else.%d", id)

	ti, err := g.genExpr(n.Then)
	if err != nil {
		return 0, err
	}
	g.pop()
	g.emit("jmp .L.end.%d", id)

	g.emitLabel(fmt.Sprintf(".L.else.%d", id))
	ei, err := g.genExpr(n.Els)
	if err != nil {
		return 0, err
	}
	g.pop()
	g.emitLabel(fmt.Sprintf(".L.end.%d", id))

	_ = ti
	_ = ei
	return g.push()
}

func (g *Generator) genLogAnd(n *ast.Node) (int, error) {
	id := n.SeqID
	li, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	g.emit("cmp %s, 0", intReg(li, sizeOf(n.LHS.Type)))
	g.pop()
	g.emit("je .L.false.%d", id)

	ri, err := g.genExpr(n.RHS)
	if err != nil {
		return 0, err
	}
	g.emit("cmp %s, 0", intReg(ri, sizeOf(n.RHS.Type)))
	g.pop()
	g.emit("je .L.false.%d", id)

	result, err := g.push()
	if err != nil {
		return 0, err
	}
	g.emit("mov %s, 1", intReg(result, 8))
	g.emit("jmp .L.end.%d", id)
	g.emitLabel(fmt.Sprintf(".L.false.%d", id))
	g.pop()
	result2, err := g.push()
	if err != nil {
		return 0, err
	}
	g.emit("mov %s, 0", intReg(result2, 8))
	g.emitLabel(fmt.Sprintf(".L.end.%d", id))
	return result2, nil
}

func (g *Generator) genLogOr(n *ast.Node) (int, error) {
	id := n.SeqID
	li, err := g.genExpr(n.LHS)
	if err != nil {
		return 0, err
	}
	g.emit("cmp %s, 0", intReg(li, sizeOf(n.LHS.Type)))
	g.pop()
	g.emit("jne .L.true.%d", id)

	ri, err := g.genExpr(n.RHS)
	if err != nil {
		return 0, err
	}
	g.emit("cmp %s, 0", intReg(ri, sizeOf(n.RHS.Type)))
	g.pop()
	g.emit("jne .L.true.%d", id)

	result, err := g.push()
	if err != nil {
		return 0, err
	}
	g.emit("mov %s, 0", intReg(result, 8))
	g.emit("jmp .L.end.%d", id)
	g.emitLabel(fmt.Sprintf(".L.true.%d", id))
	g.pop()
	result2, err := g.push()
	if err != nil {
		return 0, err
	}
	g.emit("mov %s, 1", intReg(result2, 8))
	g.emitLabel(fmt.Sprintf(".L.end.%d", id))
	return result2, nil
}

func (g *Generator) genStmtExpr(n *ast.Node) (int, error) {
	for i, s := range n.Body {
		if i == len(n.Body)-1 && s.Kind == ast.NdExprStmt {
			return g.genExpr(s.LHS)
		}
		if err := g.genStmt(s); err != nil {
			return 0, err
		}
		if err := g.assertEmpty(); err != nil {
			return 0, err
		}
	}
	return g.push()
}

