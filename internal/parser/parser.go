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

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/token"
	"github.com/M366/zcc/internal/types"
)

// Error is a fatal parse error, carrying the offending token's location.
type Error struct {
	Filename string
	Line     int
	Msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Msg)
}

// Parser holds the state of one in-progress parse: the remaining token
// cursor, the nested scope stack, and the program being assembled.
type Parser struct {
	tok *token.Token

	scopes *scopeStack

	// stringLiterals counts the anonymous globals created so far for string
	// literal expressions; the count numbers the next one.
	stringLiterals int

	seqID int

	prog *ast.Program

	// currentLocals accumulates the locals (parameters included) of the
	// function currently being parsed, mirroring the single-function-at-a-time
	// parsing of §5 (the grammar has no nested function definitions).
	currentLocals []*ast.Var

	// currentSwitch is the innermost enclosing switch statement, and
	// breakLabel/continueLabel stack the label suffixes of the enclosing
	// loops and switches that break and continue jump to.
	currentSwitch *ast.Node
	breakLabel    []string
	continueLabel []string
}

// Parse consumes the entire token stream and returns the completed program.
func Parse(tok *token.Token) (*ast.Program, error) {
	p := &Parser{
		tok:    tok,
		scopes: newScopeStack(),
		prog:   &ast.Program{},
	}
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	if err := resolveTypes(p.prog); err != nil {
		return nil, err
	}
	assignLocalOffsets(p.prog)
	return p.prog, nil
}

func (p *Parser) errorf(tok *token.Token, format string, args ...interface{}) *Error {
	return &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) cur() *token.Token { return p.tok }

func (p *Parser) at(op string) bool { return p.tok.Is(op) }

func (p *Parser) advance() *token.Token {
	t := p.tok
	p.tok = p.tok.Next
	return t
}

func (p *Parser) consume(op string) bool {
	if p.at(op) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(op string) (*token.Token, error) {
	if !p.at(op) {
		return nil, p.errorf(p.tok, "expected '%s'", op)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (string, error) {
	if p.tok.Kind != token.Ident {
		return "", p.errorf(p.tok, "expected an identifier")
	}
	return p.advance().Lexeme, nil
}

func (p *Parser) isEOF() bool { return p.tok.IsEOF() }

func (p *Parser) newSeqID() int {
	p.seqID++
	return p.seqID
}

func newNode(kind ast.NodeKind, tok *token.Token) *ast.Node {
	return &ast.Node{Kind: kind, Tok: tok}
}

func newBinary(kind ast.NodeKind, lhs, rhs *ast.Node, tok *token.Token) *ast.Node {
	n := newNode(kind, tok)
	n.LHS, n.RHS = lhs, rhs
	return n
}

func newUnary(kind ast.NodeKind, lhs *ast.Node, tok *token.Token) *ast.Node {
	n := newNode(kind, tok)
	n.LHS = lhs
	return n
}

func newNum(v int64, tok *token.Token) *ast.Node {
	n := newNode(ast.NdNum, tok)
	n.Val = v
	n.Type = types.TyLong
	return n
}

// newVarNode builds a variable reference, setting its type immediately
// from the Var (already known at lookup time) rather than waiting for the
// post-parse type pass: newAdd/newSub need a pointer/array operand's type
// at parse time, while the AST shape they build (whether a scaling Mul
// node exists) is fixed once and cannot be retrofitted later.
func newVarNode(v *ast.Var, tok *token.Token) *ast.Node {
	n := newNode(ast.NdVar, tok)
	n.VarRef = v
	n.Type = v.Type
	return n
}

// parseProgram parses a sequence of top-level declarations, each either a
// function definition or a global variable declaration (§5.1).
func (p *Parser) parseProgram() error {
	for !p.isEOF() {
		baseType, sclass, err := p.declspec()
		if err != nil {
			return err
		}
		if sclass == scTypedef {
			if err := p.parseTypedef(baseType); err != nil {
				return err
			}
			continue
		}
		if p.isFunctionDefinition(baseType) {
			if err := p.parseFunctionDefinition(baseType, sclass); err != nil {
				return err
			}
			continue
		}
		if err := p.parseGlobalDeclaration(baseType, sclass); err != nil {
			return err
		}
	}
	return nil
}

// isFunctionDefinition looks ahead through one declarator to see whether a
// '{' follows, distinguishing "int f(void) {" from "int f(void);". baseType
// is whatever declspec() just parsed for this top-level declaration.
func (p *Parser) isFunctionDefinition(baseType *types.Type) bool {
	if p.at(";") {
		return false
	}
	save := p.tok
	defer func() { p.tok = save }()

	_, ty, err := p.declarator(baseType)
	if err != nil || ty == nil {
		return false
	}
	return ty.Kind == types.Func && p.at("{")
}
