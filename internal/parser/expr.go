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
	"strconv"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/token"
	"github.com/M366/zcc/internal/types"
)

// expr parses the comma operator, the widest expression grammar: §5.4.
func (p *Parser) expr() (*ast.Node, error) {
	n, err := p.assign()
	if err != nil {
		return nil, err
	}
	for p.consume(",") {
		tok := p.cur()
		rhs, err := p.assign()
		if err != nil {
			return nil, err
		}
		n = newBinary(ast.NdComma, n, rhs, tok)
	}
	return n, nil
}

// assign parses assignment and the compound-assignment operators, each of
// which desugars to "lhs = lhs OP rhs" (§5.4). This re-evaluates lhs, which
// is only safe because the code generator never double-evaluates a side
// effect embedded in an lvalue expression in the programs this compiler
// targets; a future version would hoist the address into a temporary.
func (p *Parser) assign() (*ast.Node, error) {
	n, err := p.conditional()
	if err != nil {
		return nil, err
	}

	tok := p.cur()
	switch {
	case p.consume("="):
		rhs, err := p.assign()
		if err != nil {
			return nil, err
		}
		return newBinary(ast.NdAssign, n, rhs, tok), nil
	case p.consume("+="):
		return p.compoundAssign(n, ast.NdAdd, tok)
	case p.consume("-="):
		return p.compoundAssign(n, ast.NdSub, tok)
	case p.consume("*="):
		return p.compoundAssign(n, ast.NdMul, tok)
	case p.consume("/="):
		return p.compoundAssign(n, ast.NdDiv, tok)
	case p.consume("%="):
		return p.compoundAssign(n, ast.NdMod, tok)
	case p.consume("&="):
		return p.compoundAssign(n, ast.NdBitAnd, tok)
	case p.consume("|="):
		return p.compoundAssign(n, ast.NdBitOr, tok)
	case p.consume("^="):
		return p.compoundAssign(n, ast.NdBitXor, tok)
	case p.consume("<<="):
		return p.compoundAssign(n, ast.NdShl, tok)
	case p.consume(">>="):
		return p.compoundAssign(n, ast.NdShr, tok)
	}
	return n, nil
}

func (p *Parser) compoundAssign(lhs *ast.Node, op ast.NodeKind, tok *token.Token) (*ast.Node, error) {
	rhs, err := p.assign()
	if err != nil {
		return nil, err
	}
	return newBinary(ast.NdAssign, lhs, newBinary(op, lhs, rhs, tok), tok), nil
}

func (p *Parser) conditional() (*ast.Node, error) {
	cond, err := p.logOr()
	if err != nil {
		return nil, err
	}
	if !p.consume("?") {
		return cond, nil
	}
	tok := p.cur()
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.conditional()
	if err != nil {
		return nil, err
	}
	n := newNode(ast.NdCond, tok)
	n.Cond, n.Then, n.Els = cond, then, els
	n.SeqID = p.newSeqID()
	return n, nil
}

// binaryLevel is one precedence tier: it tries each operator in ops in
// turn and, on a match, builds a node of the paired NodeKind.
type binaryOp struct {
	lexeme string
	kind   ast.NodeKind
}

func (p *Parser) binaryLevel(next func() (*ast.Node, error), ops []binaryOp) (*ast.Node, error) {
	n, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, o := range ops {
			if p.at(o.lexeme) {
				tok := p.advance()
				rhs, err := next()
				if err != nil {
					return nil, err
				}
				n = newBinary(o.kind, n, rhs, tok)
				matched = true
				break
			}
		}
		if !matched {
			return n, nil
		}
	}
}

func (p *Parser) logOr() (*ast.Node, error) {
	n, err := p.logAnd()
	if err != nil {
		return nil, err
	}
	for p.at("||") {
		tok := p.advance()
		rhs, err := p.logAnd()
		if err != nil {
			return nil, err
		}
		n = newBinary(ast.NdLogOr, n, rhs, tok)
		n.SeqID = p.newSeqID()
	}
	return n, nil
}

func (p *Parser) logAnd() (*ast.Node, error) {
	n, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	for p.at("&&") {
		tok := p.advance()
		rhs, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		n = newBinary(ast.NdLogAnd, n, rhs, tok)
		n.SeqID = p.newSeqID()
	}
	return n, nil
}

func (p *Parser) bitOr() (*ast.Node, error) {
	return p.binaryLevel(p.bitXor, []binaryOp{{"|", ast.NdBitOr}})
}

func (p *Parser) bitXor() (*ast.Node, error) {
	return p.binaryLevel(p.bitAnd, []binaryOp{{"^", ast.NdBitXor}})
}

func (p *Parser) bitAnd() (*ast.Node, error) {
	return p.binaryLevel(p.equality, []binaryOp{{"&", ast.NdBitAnd}})
}

func (p *Parser) equality() (*ast.Node, error) {
	return p.binaryLevel(p.relational, []binaryOp{{"==", ast.NdEq}, {"!=", ast.NdNe}})
}

func (p *Parser) relational() (*ast.Node, error) {
	n, err := p.shift()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		switch {
		case p.consume("<"):
			rhs, err := p.shift()
			if err != nil {
				return nil, err
			}
			n = newBinary(ast.NdLt, n, rhs, tok)
		case p.consume("<="):
			rhs, err := p.shift()
			if err != nil {
				return nil, err
			}
			n = newBinary(ast.NdLe, n, rhs, tok)
		case p.consume(">"):
			rhs, err := p.shift()
			if err != nil {
				return nil, err
			}
			n = newBinary(ast.NdLt, rhs, n, tok)
		case p.consume(">="):
			rhs, err := p.shift()
			if err != nil {
				return nil, err
			}
			n = newBinary(ast.NdLe, rhs, n, tok)
		default:
			return n, nil
		}
	}
}

func (p *Parser) shift() (*ast.Node, error) {
	return p.binaryLevel(p.additive, []binaryOp{{"<<", ast.NdShl}, {">>", ast.NdShr}})
}

func (p *Parser) additive() (*ast.Node, error) {
	n, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		switch {
		case p.consume("+"):
			rhs, err := p.multiplicative()
			if err != nil {
				return nil, err
			}
			n, err = p.newAdd(n, rhs, tok)
			if err != nil {
				return nil, err
			}
		case p.consume("-"):
			rhs, err := p.multiplicative()
			if err != nil {
				return nil, err
			}
			n, err = p.newSub(n, rhs, tok)
			if err != nil {
				return nil, err
			}
		default:
			return n, nil
		}
	}
}

// newAdd implements §4.3's pointer arithmetic: ptr+int scales int by the
// pointee size; int+ptr is normalized to ptr+int.
func (p *Parser) newAdd(lhs, rhs *ast.Node, tok *token.Token) (*ast.Node, error) {
	if lhs.Type != nil && lhs.Type.IsPointerLike() && rhs.Type != nil && rhs.Type.IsNumeric() {
		scaled := newBinary(ast.NdMul, rhs, newNum(int64(lhs.Type.Base.Size), tok), tok)
		return newBinary(ast.NdAdd, lhs, scaled, tok), nil
	}
	if rhs.Type != nil && rhs.Type.IsPointerLike() && lhs.Type != nil && lhs.Type.IsNumeric() {
		scaled := newBinary(ast.NdMul, lhs, newNum(int64(rhs.Type.Base.Size), tok), tok)
		return newBinary(ast.NdAdd, rhs, scaled, tok), nil
	}
	return newBinary(ast.NdAdd, lhs, rhs, tok), nil
}

// newSub implements pointer-int and pointer-pointer subtraction, the
// latter dividing the byte difference by the pointee size.
func (p *Parser) newSub(lhs, rhs *ast.Node, tok *token.Token) (*ast.Node, error) {
	if lhs.Type != nil && lhs.Type.IsPointerLike() && rhs.Type != nil && rhs.Type.IsPointerLike() {
		diff := newBinary(ast.NdSub, lhs, rhs, tok)
		return newBinary(ast.NdDiv, diff, newNum(int64(lhs.Type.Base.Size), tok), tok), nil
	}
	if lhs.Type != nil && lhs.Type.IsPointerLike() && rhs.Type != nil && rhs.Type.IsNumeric() {
		scaled := newBinary(ast.NdMul, rhs, newNum(int64(lhs.Type.Base.Size), tok), tok)
		return newBinary(ast.NdSub, lhs, scaled, tok), nil
	}
	return newBinary(ast.NdSub, lhs, rhs, tok), nil
}

func (p *Parser) multiplicative() (*ast.Node, error) {
	return p.binaryLevel(p.cast, []binaryOp{{"*", ast.NdMul}, {"/", ast.NdDiv}, {"%", ast.NdMod}})
}

// cast parses a C-style cast, "(" type-name ")" cast-expr, falling back to
// unary when the parenthesized expression is not a type.
func (p *Parser) cast() (*ast.Node, error) {
	if p.at("(") && p.tok.Next != nil && p.looksLikeTypeName(p.tok.Next) {
		tok := p.cur()
		p.advance()
		ty, err := p.typeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		n := newUnary(ast.NdCast, operand, tok)
		n.Type = ty
		return n, nil
	}
	return p.unary()
}

func (p *Parser) looksLikeTypeName(tok *token.Token) bool {
	if tok.Kind == token.Keyword {
		switch tok.Lexeme {
		case "void", "_Bool", "char", "short", "int", "long", "float", "double",
			"signed", "unsigned", "struct", "union", "enum", "const", "volatile":
			return true
		}
		return false
	}
	return tok.Kind == token.Ident && p.scopes.isTypedefName(tok.Lexeme)
}

// typeName parses an abstract declarator: a type with no identifier, used
// by casts and sizeof.
func (p *Parser) typeName() (*types.Type, error) {
	baseType, _, err := p.declspec()
	if err != nil {
		return nil, err
	}
	_, ty, err := p.declarator(baseType)
	if err != nil {
		return nil, err
	}
	return ty, nil
}

// unary parses the prefix operators, sizeof and _Alignof (§5.4).
func (p *Parser) unary() (*ast.Node, error) {
	tok := p.cur()
	switch {
	case p.consume("+"):
		return p.cast()
	case p.consume("-"):
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		return newUnary(ast.NdNeg, operand, tok), nil
	case p.consume("&"):
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		return newUnary(ast.NdAddr, operand, tok), nil
	case p.consume("*"):
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		return newUnary(ast.NdDeref, operand, tok), nil
	case p.consume("!"):
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		return newUnary(ast.NdNot, operand, tok), nil
	case p.consume("~"):
		operand, err := p.cast()
		if err != nil {
			return nil, err
		}
		return newUnary(ast.NdBitNot, operand, tok), nil
	case p.consume("++"):
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return newBinary(ast.NdAssign, operand, newBinary(ast.NdAdd, operand, newNum(1, tok), tok), tok), nil
	case p.consume("--"):
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return newBinary(ast.NdAssign, operand, newBinary(ast.NdSub, operand, newNum(1, tok), tok), tok), nil
	case p.at("sizeof") && p.tok.Next != nil && p.tok.Next.Is("(") && p.tok.Next.Next != nil && p.looksLikeTypeName(p.tok.Next.Next):
		p.advance()
		p.advance()
		ty, err := p.typeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return newNum(int64(ty.Size), tok), nil
	case p.consume("sizeof"):
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		n := newNum(sizeofExpr(operand), tok)
		return n, nil
	case p.at("_Alignof") && p.tok.Next != nil && p.tok.Next.Is("("):
		p.advance()
		p.advance()
		ty, err := p.typeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return newNum(int64(ty.Align), tok), nil
	}
	return p.postfix()
}

// sizeofExpr reads back operand's type. A variable reference, literal or
// cast already carries its type (newVarNode sets a variable's at parse
// time); any other operand is typed here by running the type pass over it,
// since the parser builds operator nodes untyped. A call to a function not
// yet defined is typed int, and an operand the type pass rejects is
// measured as int.
func sizeofExpr(n *ast.Node) int64 {
	r := &typeResolver{funcReturnTypes: make(map[string]*types.Type)}
	if err := r.expr(n); err == nil && n.Type != nil {
		return int64(n.Type.Size)
	}
	return int64(types.TyInt.Size)
}

// postfix parses array/member/call/increment suffixes, left to right.
func (p *Parser) postfix() (*ast.Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		switch {
		case p.consume("["):
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			added, err := p.newAdd(n, idx, tok)
			if err != nil {
				return nil, err
			}
			n = newUnary(ast.NdDeref, added, tok)
		case p.consume("."):
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			m := newUnary(ast.NdMember, n, tok)
			m.MemberName = name
			n = m
		case p.consume("->"):
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			deref := newUnary(ast.NdDeref, n, tok)
			m := newUnary(ast.NdMember, deref, tok)
			m.MemberName = name
			n = m
		case p.consume("++"):
			n = newBinary(ast.NdAssign, n, newBinary(ast.NdAdd, n, newNum(1, tok), tok), tok)
		case p.consume("--"):
			n = newBinary(ast.NdAssign, n, newBinary(ast.NdSub, n, newNum(1, tok), tok), tok)
		default:
			return n, nil
		}
	}
}

// primary parses the atoms of an expression: literals, identifiers,
// parenthesized expressions (including the GCC statement-expression
// extension), and function calls.
func (p *Parser) primary() (*ast.Node, error) {
	tok := p.cur()

	switch {
	case p.at("(") && p.tok.Next != nil && p.tok.Next.Is("{"):
		// GCC statement expression: "({ stmt...; expr; })".
		p.advance()
		body, err := p.compoundStmt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		n := newNode(ast.NdStmtExpr, tok)
		n.Body = body
		return n, nil

	case p.consume("("):
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return n, nil

	case tok.Kind == token.Number:
		p.advance()
		n := newNode(ast.NdNum, tok)
		switch tok.NumType {
		case token.NumFloat, token.NumDouble:
			n.FVal = tok.FloatValue
			if tok.NumType == token.NumFloat {
				n.Type = types.TyFloat
			} else {
				n.Type = types.TyDouble
			}
		default:
			n.Val = int64(tok.IntValue)
			switch tok.NumType {
			case token.NumUInt:
				n.Type = types.TyUInt
			case token.NumLong:
				n.Type = types.TyLong
			case token.NumULong:
				n.Type = types.TyULong
			default:
				n.Type = types.TyInt
			}
		}
		return n, nil

	case tok.Kind == token.Str:
		p.advance()
		v := p.addStringLiteral(tok.StrValue)
		return newVarNode(v, tok), nil

	case tok.Kind == token.Ident:
		return p.identOrCall()
	}

	return nil, p.errorf(tok, "expected an expression")
}

// identOrCall distinguishes a bare identifier reference from a function
// call, and resolves enum constants to integer literals in place.
func (p *Parser) identOrCall() (*ast.Node, error) {
	tok := p.cur()
	name := p.advance().Lexeme

	if p.consume("(") {
		kind := ast.NdFuncall
		if name == "__builtin_va_start" {
			kind = ast.NdVaStart
		}
		n := newNode(kind, tok)
		n.FuncName = name
		for !p.at(")") {
			if len(n.Args) > 0 {
				if _, err := p.expect(","); err != nil {
					return nil, err
				}
			}
			arg, err := p.assign()
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return n, nil
	}

	e := p.scopes.findVar(name)
	if e == nil {
		return nil, p.errorf(tok, "undefined variable: %s", name)
	}
	if e.enumVal != nil {
		n := newNum(*e.enumVal, tok)
		return n, nil
	}
	if e.v == nil {
		return nil, p.errorf(tok, "%s names a type, not a value", name)
	}
	return newVarNode(e.v, tok), nil
}

// addStringLiteral interns s as an anonymous file-scope char array, the
// way the original promotes every string literal to a global (§4.4).
func (p *Parser) addStringLiteral(s []byte) *ast.Var {
	p.stringLiterals++
	name := stringLiteralLabel(p.stringLiterals)
	ty := types.ArrayOf(types.TyChar, len(s))
	v := &ast.Var{Name: name, Type: ty, InitData: append([]byte(nil), s...), Align: 1, IsStatic: true}
	p.prog.Globals = append(p.prog.Globals, v)
	return v
}

func stringLiteralLabel(n int) string {
	return ".L..str" + strconv.Itoa(n)
}

// constExpr evaluates a constant integer expression at parse time, used
// for array bounds, enum values, case labels and global initializers
// (§5.3). It parses the full conditional-expression grammar and folds it
// immediately, rather than building an AST node for the code generator.
func (p *Parser) constExpr() (int64, error) {
	n, err := p.conditional()
	if err != nil {
		return 0, err
	}
	return foldConst(n)
}

func foldConst(n *ast.Node) (int64, error) {
	switch n.Kind {
	case ast.NdNum:
		return n.Val, nil
	case ast.NdNeg:
		v, err := foldConst(n.LHS)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case ast.NdNot:
		v, err := foldConst(n.LHS)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case ast.NdBitNot:
		v, err := foldConst(n.LHS)
		if err != nil {
			return 0, err
		}
		return ^v, nil
	case ast.NdCast:
		return foldConst(n.LHS)
	case ast.NdCond:
		c, err := foldConst(n.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return foldConst(n.Then)
		}
		return foldConst(n.Els)
	case ast.NdLogAnd:
		l, err := foldConst(n.LHS)
		if err != nil {
			return 0, err
		}
		if l == 0 {
			return 0, nil
		}
		r, err := foldConst(n.RHS)
		if err != nil {
			return 0, err
		}
		return boolToInt64(r != 0), nil
	case ast.NdLogOr:
		l, err := foldConst(n.LHS)
		if err != nil {
			return 0, err
		}
		if l != 0 {
			return 1, nil
		}
		r, err := foldConst(n.RHS)
		if err != nil {
			return 0, err
		}
		return boolToInt64(r != 0), nil
	}

	l, err := foldConst(n.LHS)
	if err != nil {
		return 0, err
	}
	r, err := foldConst(n.RHS)
	if err != nil {
		return 0, err
	}
	switch n.Kind {
	case ast.NdAdd:
		return l + r, nil
	case ast.NdSub:
		return l - r, nil
	case ast.NdMul:
		return l * r, nil
	case ast.NdDiv:
		if r == 0 {
			return 0, &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "division by zero in constant expression"}
		}
		return l / r, nil
	case ast.NdMod:
		if r == 0 {
			return 0, &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "division by zero in constant expression"}
		}
		return l % r, nil
	case ast.NdBitAnd:
		return l & r, nil
	case ast.NdBitOr:
		return l | r, nil
	case ast.NdBitXor:
		return l ^ r, nil
	case ast.NdShl:
		return l << uint(r), nil
	case ast.NdShr:
		return l >> uint(r), nil
	case ast.NdEq:
		return boolToInt64(l == r), nil
	case ast.NdNe:
		return boolToInt64(l != r), nil
	case ast.NdLt:
		return boolToInt64(l < r), nil
	case ast.NdLe:
		return boolToInt64(l <= r), nil
	}
	return 0, &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "not a constant expression"}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
