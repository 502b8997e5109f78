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
	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/types"
)

// genCall marshals up to six arguments into the System V integer/SSE
// argument registers and emits the call, per §4.5. r10/r11 are part of the
// expression work file (regs.go) but are caller-saved by the ABI, so any
// value still live in one of those two slots must survive the call: they
// are spilled to the native stack around every call, not just ones that
// happen to be using them.
func (g *Generator) genCall(n *ast.Node) (int, error) {
	argIdx := make([]int, len(n.Args))
	for i, a := range n.Args {
		idx, err := g.genExpr(a)
		if err != nil {
			return 0, err
		}
		argIdx[i] = idx
	}

	gp, fp := 0, 0
	for i, a := range n.Args {
		idx := argIdx[i]
		if a.Type.IsFlonum() {
			if fp < len(argFloatRegs) {
				if a.Type.Size == 4 {
					g.emit("movss %s, %s", argFloatRegs[fp], floatReg(idx))
				} else {
					g.emit("movsd %s, %s", argFloatRegs[fp], floatReg(idx))
				}
				fp++
			}
			continue
		}
		if gp < len(argIntRegs64) {
			g.emit("mov %s, %s", argIntRegs64[gp], intReg(idx, 8))
			gp++
		}
	}
	for range n.Args {
		g.pop()
	}

	g.emit("push r10")
	g.emit("push r11")
	if fp > 0 {
		g.emit("mov al, %d", fp)
	} else {
		g.emit("xor eax, eax")
	}
	g.emit("call %s", n.FuncName)
	g.emit("pop r11")
	g.emit("pop r10")

	result, err := g.push()
	if err != nil {
		return 0, err
	}
	switch {
	case n.Type == nil || n.Type.Kind == types.Void:
		// No meaningful value; the slot is released by the caller's
		// expression-statement handling without ever being read.
	case n.Type.IsFlonum():
		if n.Type.Size == 4 {
			g.emit("movss %s, xmm0", floatReg(result))
		} else {
			g.emit("movsd %s, xmm0", floatReg(result))
		}
	case n.Type.Kind == types.Bool:
		g.emit("movzx %s, al", intReg(result, 8))
	default:
		g.emit("mov %s, rax", intReg(result, 8))
	}
	return result, nil
}

// genVaStart implements __builtin_va_start(ap, last): it fills in the
// standard x86-64 va_list layout (gp_offset, fp_offset, overflow_arg_area,
// reg_save_area) so a later va_arg can walk it, the register half pointing
// at the spill area emitVariadicSaveArea wrote in the prologue.
func (g *Generator) genVaStart(n *ast.Node) (int, error) {
	if len(n.Args) < 1 {
		return 0, &Error{Msg: "codegen: __builtin_va_start requires a va_list argument"}
	}
	apIdx, err := g.genExpr(n.Args[0])
	if err != nil {
		return 0, err
	}
	ap := intReg(apIdx, 8)

	namedGP := 0
	for _, p := range g.fn.Params {
		if !p.Type.IsFlonum() {
			namedGP++
		}
	}
	gpOffset := namedGP * 8
	if gpOffset > 48 {
		gpOffset = 48
	}

	g.emit("mov dword ptr [%s], %d", ap, gpOffset)
	g.emit("mov dword ptr [%s+4], 48", ap)
	g.emit("lea rax, [rbp+16]")
	g.emit("mov [%s+8], rax", ap)
	g.emit("lea rax, [rbp-80]")
	g.emit("mov [%s+16], rax", ap)
	g.pop()

	idx, err := g.push()
	if err != nil {
		return 0, err
	}
	g.emit("mov %s, 0", intReg(idx, 8))
	return idx, nil
}
