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

package parser

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/token"
	"github.com/M366/zcc/internal/types"
)

// stmt parses one statement, per §5.2.
func (p *Parser) stmt() (*ast.Node, error) {
	tok := p.cur()

	switch {
	case p.at("{"):
		body, err := p.compoundStmt()
		if err != nil {
			return nil, err
		}
		n := newNode(ast.NdBlock, tok)
		n.Body = body
		return n, nil

	case p.at("return"):
		p.advance()
		n := newNode(ast.NdReturn, tok)
		if !p.at(";") {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			n.LHS = e
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		return n, nil

	case p.at("if"):
		return p.ifStmt(tok)

	case p.at("for"):
		return p.forStmt(tok)

	case p.at("while"):
		return p.whileStmt(tok)

	case p.at("do"):
		return p.doStmt(tok)

	case p.at("switch"):
		return p.switchStmt(tok)

	case p.at("case"):
		return p.caseStmt(tok)

	case p.at("default"):
		return p.defaultStmt(tok)

	case p.at("break"):
		p.advance()
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		if len(p.breakLabel) == 0 {
			return nil, p.errorf(tok, "stray break")
		}
		n := newNode(ast.NdBreak, tok)
		n.Label = p.breakLabel[len(p.breakLabel)-1]
		return n, nil

	case p.at("continue"):
		p.advance()
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		if len(p.continueLabel) == 0 {
			return nil, p.errorf(tok, "stray continue")
		}
		n := newNode(ast.NdContinue, tok)
		n.Label = p.continueLabel[len(p.continueLabel)-1]
		return n, nil

	case p.at("goto"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		n := newNode(ast.NdGoto, tok)
		n.Label = name
		return n, nil

	case p.tok.Kind == token.Ident && p.tok.Next != nil && p.tok.Next.Is(":"):
		name := p.advance().Lexeme
		p.advance() // ':'
		inner, err := p.stmt()
		if err != nil {
			return nil, err
		}
		n := newNode(ast.NdLabel, tok)
		n.Label = name
		n.LHS = inner
		return n, nil

	default:
		return p.exprStmt()
	}
}

func (p *Parser) ifStmt(tok *token.Token) (*ast.Node, error) {
	p.advance()
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	then, err := p.stmt()
	if err != nil {
		return nil, err
	}
	n := newNode(ast.NdIf, tok)
	n.Cond, n.Then = cond, then
	if p.consume("else") {
		els, err := p.stmt()
		if err != nil {
			return nil, err
		}
		n.Els = els
	}
	n.SeqID = p.newSeqID()
	return n, nil
}

func (p *Parser) forStmt(tok *token.Token) (*ast.Node, error) {
	p.advance()
	if _, err := p.expect("("); err != nil {
		return nil, err
	}

	p.scopes.push()
	defer p.scopes.pop()

	n := newNode(ast.NdFor, tok)
	if p.isTypeSpecifierStart() {
		init, err := p.declarationStmt()
		if err != nil {
			return nil, err
		}
		n.Init = init
	} else if !p.at(";") {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		n.Init = exprStmtNode(e, tok)
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}

	if !p.at(";") {
		cond, err := p.expr()
		if err != nil {
			return nil, err
		}
		n.Cond = cond
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	if !p.at(")") {
		inc, err := p.expr()
		if err != nil {
			return nil, err
		}
		n.Inc = inc
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%d", p.newSeqID())
	n.SeqID = p.seqID
	p.breakLabel = append(p.breakLabel, label)
	p.continueLabel = append(p.continueLabel, label)
	body, err := p.stmt()
	p.breakLabel = p.breakLabel[:len(p.breakLabel)-1]
	p.continueLabel = p.continueLabel[:len(p.continueLabel)-1]
	if err != nil {
		return nil, err
	}
	n.Then = body
	n.Label = label
	return n, nil
}

func (p *Parser) whileStmt(tok *token.Token) (*ast.Node, error) {
	p.advance()
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%d", p.newSeqID())
	p.breakLabel = append(p.breakLabel, label)
	p.continueLabel = append(p.continueLabel, label)
	body, err := p.stmt()
	p.breakLabel = p.breakLabel[:len(p.breakLabel)-1]
	p.continueLabel = p.continueLabel[:len(p.continueLabel)-1]
	if err != nil {
		return nil, err
	}

	n := newNode(ast.NdFor, tok)
	n.Cond = cond
	n.Then = body
	n.Label = label
	return n, nil
}

func (p *Parser) doStmt(tok *token.Token) (*ast.Node, error) {
	p.advance()
	label := fmt.Sprintf("%d", p.newSeqID())
	p.breakLabel = append(p.breakLabel, label)
	p.continueLabel = append(p.continueLabel, label)
	body, err := p.stmt()
	p.breakLabel = p.breakLabel[:len(p.breakLabel)-1]
	p.continueLabel = p.continueLabel[:len(p.continueLabel)-1]
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("while"); err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	n := newNode(ast.NdDo, tok)
	n.Then = body
	n.Cond = cond
	n.Label = label
	return n, nil
}

func (p *Parser) switchStmt(tok *token.Token) (*ast.Node, error) {
	p.advance()
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}

	n := newNode(ast.NdSwitch, tok)
	n.Cond = cond
	n.Label = fmt.Sprintf("%d", p.newSeqID())

	p.breakLabel = append(p.breakLabel, n.Label)
	prevSwitch := p.currentSwitch
	p.currentSwitch = n
	body, err := p.stmt()
	p.currentSwitch = prevSwitch
	p.breakLabel = p.breakLabel[:len(p.breakLabel)-1]
	if err != nil {
		return nil, err
	}
	n.Then = body

	if dup, ok := firstDuplicateCaseVal(n.Cases); ok {
		return nil, p.errorf(tok, "duplicate case value: %d", dup)
	}
	if defaults := lo.CountBy(n.Cases, func(c *ast.Node) bool { return c.IsDefault }); defaults > 1 {
		return nil, p.errorf(tok, "multiple default labels in one switch")
	}
	return n, nil
}

// firstDuplicateCaseVal reports the first case constant that appears more
// than once among cases's non-default entries, the way two "case 3:"
// labels in the same switch would silently shadow one another in the
// cmp/je chain §4.5 emits.
func firstDuplicateCaseVal(cases []*ast.Node) (int64, bool) {
	seen := lo.Filter(cases, func(c *ast.Node, _ int) bool { return !c.IsDefault })
	vals := lo.Map(seen, func(c *ast.Node, _ int) int64 { return c.CaseVal })
	uniq := lo.Uniq(vals)
	if len(uniq) != len(vals) {
		counts := lo.CountValues(vals)
		for _, v := range vals {
			if counts[v] > 1 {
				return v, true
			}
		}
	}
	return 0, false
}

func (p *Parser) caseStmt(tok *token.Token) (*ast.Node, error) {
	if p.currentSwitch == nil {
		return nil, p.errorf(tok, "stray case")
	}
	p.advance()
	v, err := p.constExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	inner, err := p.stmt()
	if err != nil {
		return nil, err
	}
	n := newNode(ast.NdCase, tok)
	n.CaseVal = v
	n.LHS = inner
	n.Label = fmt.Sprintf("%d", p.newSeqID())
	p.currentSwitch.Cases = append(p.currentSwitch.Cases, n)
	return n, nil
}

func (p *Parser) defaultStmt(tok *token.Token) (*ast.Node, error) {
	if p.currentSwitch == nil {
		return nil, p.errorf(tok, "stray default")
	}
	p.advance()
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	inner, err := p.stmt()
	if err != nil {
		return nil, err
	}
	n := newNode(ast.NdCase, tok)
	n.IsDefault = true
	n.LHS = inner
	n.Label = fmt.Sprintf("%d", p.newSeqID())
	p.currentSwitch.Cases = append(p.currentSwitch.Cases, n)
	return n, nil
}

func (p *Parser) exprStmt() (*ast.Node, error) {
	tok := p.cur()
	if p.consume(";") {
		return newNode(ast.NdBlock, tok), nil
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return exprStmtNode(e, tok), nil
}

func exprStmtNode(e *ast.Node, tok *token.Token) *ast.Node {
	n := newNode(ast.NdExprStmt, tok)
	n.LHS = e
	return n
}

// compoundStmt parses "{ (declaration | statement)* }", per §5.2, pushing
// a fresh scope for the block's lifetime.
func (p *Parser) compoundStmt() ([]*ast.Node, error) {
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	p.scopes.push()
	defer p.scopes.pop()

	var body []*ast.Node
	for !p.at("}") {
		var n *ast.Node
		var err error
		switch {
		case p.at("typedef"):
			baseType, _, derr := p.declspec()
			if derr != nil {
				return nil, derr
			}
			if err := p.parseTypedef(baseType); err != nil {
				return nil, err
			}
			continue
		case p.isTypeSpecifierStart():
			n, err = p.declarationStmt()
		default:
			n, err = p.stmt()
		}
		if err != nil {
			return nil, err
		}
		if n != nil {
			body = append(body, n)
		}
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return body, nil
}

// declarationStmt parses a local variable declaration, with optional
// initializers desugared into assignment expression-statements.
func (p *Parser) declarationStmt() (*ast.Node, error) {
	tok := p.cur()
	baseType, sclass, err := p.declspec()
	if err != nil {
		return nil, err
	}
	if sclass == scTypedef {
		if err := p.parseTypedef(baseType); err != nil {
			return nil, err
		}
		return newNode(ast.NdBlock, tok), nil
	}

	var stmts []*ast.Node
	first := true
	for !p.at(";") {
		if !first {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
		}
		first = false

		name, ty, err := p.declarator(baseType)
		if err != nil {
			return nil, err
		}
		if ty.Kind == types.Void {
			return nil, p.errorf(tok, "variable declared void")
		}
		v := &ast.Var{Name: name, Type: ty, IsLocal: true, IsStatic: sclass == scStatic, Align: ty.Align}
		p.scopes.declareVar(name, v)
		if !v.IsStatic {
			p.currentLocals = append(p.currentLocals, v)
		} else {
			p.prog.Globals = append(p.prog.Globals, v)
		}

		if p.consume("=") {
			initStmts, err := p.localInitializer(v, ty, tok)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, initStmts...)
		}
	}
	p.advance() // ';'

	block := newNode(ast.NdBlock, tok)
	block.Body = stmts
	return block, nil
}

// localInitializer desugars "T v = expr;" / "T v[] = {...};" into one or
// more expression statements assigning into v (or its elements), per §5.3.
func (p *Parser) localInitializer(v *ast.Var, ty *types.Type, tok *token.Token) ([]*ast.Node, error) {
	if ty.Kind == types.Array && p.at("{") {
		p.advance()
		var stmts []*ast.Node
		idx := 0
		for !p.at("}") {
			e, err := p.assign()
			if err != nil {
				return nil, err
			}
			elem := newBinary(ast.NdAssign, indexNode(v, idx, ty, tok), e, tok)
			stmts = append(stmts, exprStmtNode(elem, tok))
			idx++
			if !p.consume(",") {
				break
			}
		}
		if _, err := p.expect("}"); err != nil {
			return nil, err
		}
		if ty.Len < 0 {
			ty.Len = idx
			ty.Size = idx * ty.Base.Size
		}
		return stmts, nil
	}

	e, err := p.assign()
	if err != nil {
		return nil, err
	}
	assign := newBinary(ast.NdAssign, newVarNode(v, tok), e, tok)
	return []*ast.Node{exprStmtNode(assign, tok)}, nil
}

func indexNode(v *ast.Var, idx int, arrTy *types.Type, tok *token.Token) *ast.Node {
	base := newVarNode(v, tok)
	offset := newNum(int64(idx*arrTy.Base.Size), tok)
	addr := newBinary(ast.NdAdd, base, offset, tok)
	return newUnary(ast.NdDeref, addr, tok)
}
