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

import "github.com/M366/zcc/internal/ast"

// argIntRegs/argFloatRegs are the System V argument-passing registers,
// distinct from the r10-r15 expression work file (regs.go): a function
// call loads into these, never the other way around.
var (
	argIntRegs64 = [6]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	argIntRegs32 = [6]string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argIntRegs16 = [6]string{"di", "si", "dx", "cx", "r8w", "r9w"}
	argIntRegs8  = [6]string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
	argFloatRegs = [8]string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"}
)

func (g *Generator) emitFunction(fn *ast.Function) error {
	g.fn = fn
	g.top = 0

	if !fn.IsStatic {
		g.emit(".globl %s", fn.Name)
	}
	g.emitLabel(fn.Name)

	g.emit("push rbp")
	g.emit("mov rbp, rsp")
	g.emit("sub rsp, %d", fn.StackSize)

	g.emit("mov [rbp-8], r12")
	g.emit("mov [rbp-16], r13")
	g.emit("mov [rbp-24], r14")
	g.emit("mov [rbp-32], r15")

	if fn.IsVariadic {
		g.emitVariadicSaveArea(fn)
	}

	g.spillParams(fn)

	for _, n := range fn.Body {
		if err := g.genStmt(n); err != nil {
			return err
		}
		if err := g.assertEmpty(); err != nil {
			return err
		}
	}

	g.emitLabel(".L.return." + fn.Name)
	g.emit("mov r12, [rbp-8]")
	g.emit("mov r13, [rbp-16]")
	g.emit("mov r14, [rbp-24]")
	g.emit("mov r15, [rbp-32]")
	g.emit("mov rsp, rbp")
	g.emit("pop rbp")
	g.emit("ret")
	return nil
}

// emitVariadicSaveArea spills the six integer argument registers into the
// fixed -40..-80 save area, so __builtin_va_start's reg_save_area (rbp-80)
// can hand unconsumed ones back out through a va_list.
func (g *Generator) emitVariadicSaveArea(fn *ast.Function) {
	offsets := [6]int{80, 72, 64, 56, 48, 40}
	for i, reg := range argIntRegs64 {
		g.emit("mov [rbp-%d], %s", offsets[i], reg)
	}
}

// spillParams copies each named parameter out of its ABI argument
// register into its assigned local slot, immediately after the prologue.
func (g *Generator) spillParams(fn *ast.Function) {
	gp, fp := 0, 0
	for _, p := range fn.Params {
		if p.Type.IsFlonum() {
			if fp < len(argFloatRegs) {
				if p.Type.Size == 4 {
					g.emit("movss [rbp%+d], %s", p.Offset, argFloatRegs[fp])
				} else {
					g.emit("movsd [rbp%+d], %s", p.Offset, argFloatRegs[fp])
				}
				fp++
			}
			continue
		}
		if gp >= len(argIntRegs64) {
			continue
		}
		switch p.Type.Size {
		case 1:
			g.emit("mov byte ptr [rbp%+d], %s", p.Offset, argIntRegs8[gp])
		case 2:
			g.emit("mov word ptr [rbp%+d], %s", p.Offset, argIntRegs16[gp])
		case 4:
			g.emit("mov dword ptr [rbp%+d], %s", p.Offset, argIntRegs32[gp])
		default:
			g.emit("mov [rbp%+d], %s", p.Offset, argIntRegs64[gp])
		}
		gp++
	}
}
