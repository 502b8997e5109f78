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

// genStmt compiles one statement, leaving the register stack exactly as it
// found it: emitFunction asserts top == 0 after every top-level statement,
// and every loop/if/switch branch below restores it before falling through.
func (g *Generator) genStmt(n *ast.Node) error {
	g.loc(n)
	switch n.Kind {
	case ast.NdBlock:
		for _, s := range n.Body {
			if err := g.genStmt(s); err != nil {
				return err
			}
		}
		return nil
	case ast.NdIf:
		return g.genIf(n)
	case ast.NdFor:
		return g.genFor(n)
	case ast.NdDo:
		return g.genDo(n)
	case ast.NdSwitch:
		return g.genSwitch(n)
	case ast.NdCase:
		g.emitLabel(".L.case." + n.Label)
		return g.genStmt(n.LHS)
	case ast.NdBreak:
		if n.Label == "" {
			return &Error{Msg: "codegen: break outside loop or switch"}
		}
		g.emit("jmp .L.break.%s", n.Label)
		return nil
	case ast.NdContinue:
		if n.Label == "" {
			return &Error{Msg: "codegen: continue outside loop"}
		}
		g.emit("jmp .L.continue.%s", n.Label)
		return nil
	case ast.NdGoto:
		g.emit("jmp .L.label.%s.%s", g.fn.Name, n.Label)
		return nil
	case ast.NdLabel:
		g.emitLabel(".L.label." + g.fn.Name + "." + n.Label)
		return g.genStmt(n.LHS)
	case ast.NdReturn:
		if n.LHS != nil {
			idx, err := g.genExpr(n.LHS)
			if err != nil {
				return err
			}
			g.moveToReturnReg(idx, n.LHS.Type)
			g.pop()
		}
		g.emit("jmp .L.return.%s", g.fn.Name)
		return nil
	case ast.NdExprStmt:
		idx, err := g.genExpr(n.LHS)
		if err != nil {
			return err
		}
		g.pop1(idx)
		return nil
	}
	return &Error{Msg: "codegen: unsupported statement node"}
}

func (g *Generator) genIf(n *ast.Node) error {
	id := n.SeqID
	ci, err := g.genExpr(n.Cond)
	if err != nil {
		return err
	}
	g.emit("cmp %s, 0", intReg(ci, sizeOf(n.Cond.Type)))
	g.pop()

	elseOrEnd := "end"
	if n.Els != nil {
		elseOrEnd = "else"
	}
	g.emit("je .L.%s.%d", elseOrEnd, id)

	if err := g.genStmt(n.Then); err != nil {
		return err
	}
	if err := g.assertEmpty(); err != nil {
		return err
	}

	if n.Els != nil {
		g.emit("jmp .L.end.%d", id)
		g.emitLabel(fmt.Sprintf(".L.else.%d", id))
		if err := g.genStmt(n.Els); err != nil {
			return err
		}
		if err := g.assertEmpty(); err != nil {
			return err
		}
	}
	g.emitLabel(fmt.Sprintf(".L.end.%d", id))
	return nil
}

// genFor compiles both "for" and desugared "while" loops (both NdFor): Init
// and Inc are nil for a while loop, per whileStmt's desugaring.
func (g *Generator) genFor(n *ast.Node) error {
	if n.Init != nil {
		if err := g.genStmt(n.Init); err != nil {
			return err
		}
		if err := g.assertEmpty(); err != nil {
			return err
		}
	}

	g.emitLabel(".L.begin." + n.Label)
	if n.Cond != nil {
		ci, err := g.genExpr(n.Cond)
		if err != nil {
			return err
		}
		g.emit("cmp %s, 0", intReg(ci, sizeOf(n.Cond.Type)))
		g.pop()
		g.emit("je .L.break.%s", n.Label)
	}

	if err := g.genStmt(n.Then); err != nil {
		return err
	}
	if err := g.assertEmpty(); err != nil {
		return err
	}

	g.emitLabel(".L.continue." + n.Label)
	if n.Inc != nil {
		ii, err := g.genExpr(n.Inc)
		if err != nil {
			return err
		}
		g.pop1(ii)
	}
	g.emit("jmp .L.begin.%s", n.Label)
	g.emitLabel(".L.break." + n.Label)
	return nil
}

func (g *Generator) genDo(n *ast.Node) error {
	g.emitLabel(".L.begin." + n.Label)
	if err := g.genStmt(n.Then); err != nil {
		return err
	}
	if err := g.assertEmpty(); err != nil {
		return err
	}

	g.emitLabel(".L.continue." + n.Label)
	ci, err := g.genExpr(n.Cond)
	if err != nil {
		return err
	}
	g.emit("cmp %s, 0", intReg(ci, sizeOf(n.Cond.Type)))
	g.pop()
	g.emit("jne .L.begin.%s", n.Label)
	g.emitLabel(".L.break." + n.Label)
	return nil
}

// genSwitch compiles a switch as a linear cmp/je chain against each case
// value, per §4.5, falling through to default (or past the body) when
// nothing matches.
func (g *Generator) genSwitch(n *ast.Node) error {
	ci, err := g.genExpr(n.Cond)
	if err != nil {
		return err
	}
	reg := intReg(ci, sizeOf(n.Cond.Type))

	var defaultLabel string
	for _, c := range n.Cases {
		if c.IsDefault {
			defaultLabel = ".L.case." + c.Label
			continue
		}
		g.emit("cmp %s, %d", reg, c.CaseVal)
		g.emit("je .L.case.%s", c.Label)
	}
	g.pop()

	if defaultLabel != "" {
		g.emit("jmp %s", defaultLabel)
	} else {
		g.emit("jmp .L.break.%s", n.Label)
	}

	if err := g.genStmt(n.Then); err != nil {
		return err
	}
	g.emitLabel(".L.break." + n.Label)
	return nil
}

// moveToReturnReg copies a function's result into the ABI return register
// (rax/eax or xmm0, per §4.5), zero-extending a bool result from its low
// byte so a boolean return value never carries garbage in its high bits.
func (g *Generator) moveToReturnReg(idx int, ty *types.Type) {
	if ty.IsFlonum() {
		reg := floatReg(idx)
		if ty.Size == 4 {
			g.emit("movss xmm0, %s", reg)
		} else {
			g.emit("movsd xmm0, %s", reg)
		}
		return
	}
	if ty.Kind == types.Bool {
		g.emit("movzx eax, %s", intReg(idx, 1))
		return
	}
	g.emit("mov %s, %s", regAtSize("rax", sizeOf(ty)), intReg(idx, sizeOf(ty)))
}
