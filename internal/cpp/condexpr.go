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

package cpp

import (
	"github.com/M366/zcc/internal/lexer"
	"github.com/M366/zcc/internal/token"
)

// evalConstExpr evaluates the #if/#elif controlling expression found
// between tok (inclusive) and end (exclusive), per §4.2: "defined" is
// resolved before macro expansion, the remainder is macro-expanded, and any
// identifier still standing afterward evaluates to 0.
func (p *Preprocessor) evalConstExpr(tok, end *token.Token) (int64, error) {
	toks := resolveDefined(sliceBetween(tok, end), p.Macros)

	expanded, err := p.expandTokenList(sliceToList(toks))
	if err != nil {
		return 0, err
	}
	if err := lexer.ConvertPPNumbers(expanded); err != nil {
		return 0, &Error{Msg: err.Error()}
	}
	toks = linkedToSlice(expanded)

	for _, t := range toks {
		if t.Kind == token.Ident {
			t.Kind = token.Number
			t.NumType = token.NumInt
			t.IntValue = 0
		}
	}

	if len(toks) == 0 {
		return 0, &Error{Msg: "expected a value in #if expression"}
	}
	ev := &exprEval{toks: toks}
	v, err := ev.conditional()
	if err != nil {
		return 0, err
	}
	if ev.pos != len(ev.toks) {
		return 0, &Error{Msg: "extra tokens in #if expression"}
	}
	return v, nil
}

func sliceBetween(tok, end *token.Token) []*token.Token {
	var out []*token.Token
	for t := tok; t != nil && t != end && t.Kind != token.EOF; t = t.Next {
		out = append(out, t)
	}
	return out
}

func sliceToList(toks []*token.Token) *token.Token {
	var dummy token.Token
	cur := &dummy
	for _, t := range toks {
		cp := *t
		cp.Next = nil
		cur.Next = &cp
		cur = cur.Next
	}
	return dummy.Next
}

// resolveDefined replaces "defined X" and "defined(X)" with a literal 1/0,
// before macro expansion touches X.
func resolveDefined(toks []*token.Token, macros *MacroTable) []*token.Token {
	var out []*token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != token.Ident || t.Lexeme != "defined" {
			out = append(out, t)
			continue
		}
		i++
		if i >= len(toks) {
			break
		}
		paren := false
		if toks[i].Is("(") {
			paren = true
			i++
		}
		if i >= len(toks) || toks[i].Kind != token.Ident {
			continue
		}
		name := toks[i].Lexeme
		if paren {
			i++
			if i < len(toks) && toks[i].Is(")") {
				// consumed
			} else {
				i--
			}
		}
		v := int64(0)
		if macros.IsDefined(name) {
			v = 1
		}
		out = append(out, &token.Token{Kind: token.Number, NumType: token.NumInt, IntValue: uint64(v)})
	}
	return out
}

// exprEval is a small recursive-descent evaluator for the integer constant
// expression grammar accepted by #if/#elif.
type exprEval struct {
	toks []*token.Token
	pos  int
}

func (e *exprEval) peek() *token.Token {
	if e.pos >= len(e.toks) {
		return nil
	}
	return e.toks[e.pos]
}

func (e *exprEval) consume(op string) bool {
	if t := e.peek(); t != nil && t.Is(op) {
		e.pos++
		return true
	}
	return false
}

func (e *exprEval) conditional() (int64, error) {
	cond, err := e.logicalOr()
	if err != nil {
		return 0, err
	}
	if e.consume("?") {
		then, err := e.conditional()
		if err != nil {
			return 0, err
		}
		if !e.consume(":") {
			return 0, &Error{Msg: "expected ':' in conditional expression"}
		}
		els, err := e.conditional()
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return then, nil
		}
		return els, nil
	}
	return cond, nil
}

func (e *exprEval) logicalOr() (int64, error) {
	v, err := e.logicalAnd()
	if err != nil {
		return 0, err
	}
	for e.consume("||") {
		r, err := e.logicalAnd()
		if err != nil {
			return 0, err
		}
		v = boolToInt(v != 0 || r != 0)
	}
	return v, nil
}

func (e *exprEval) logicalAnd() (int64, error) {
	v, err := e.bitOr()
	if err != nil {
		return 0, err
	}
	for e.consume("&&") {
		r, err := e.bitOr()
		if err != nil {
			return 0, err
		}
		v = boolToInt(v != 0 && r != 0)
	}
	return v, nil
}

func (e *exprEval) bitOr() (int64, error) {
	v, err := e.bitXor()
	if err != nil {
		return 0, err
	}
	for e.consume("|") {
		r, err := e.bitXor()
		if err != nil {
			return 0, err
		}
		v |= r
	}
	return v, nil
}

func (e *exprEval) bitXor() (int64, error) {
	v, err := e.bitAnd()
	if err != nil {
		return 0, err
	}
	for e.consume("^") {
		r, err := e.bitAnd()
		if err != nil {
			return 0, err
		}
		v ^= r
	}
	return v, nil
}

func (e *exprEval) bitAnd() (int64, error) {
	v, err := e.equality()
	if err != nil {
		return 0, err
	}
	for e.consume("&") {
		r, err := e.equality()
		if err != nil {
			return 0, err
		}
		v &= r
	}
	return v, nil
}

func (e *exprEval) equality() (int64, error) {
	v, err := e.relational()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.consume("=="):
			r, err := e.relational()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v == r)
		case e.consume("!="):
			r, err := e.relational()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v != r)
		default:
			return v, nil
		}
	}
}

func (e *exprEval) relational() (int64, error) {
	v, err := e.shift()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.consume("<="):
			r, err := e.shift()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v <= r)
		case e.consume(">="):
			r, err := e.shift()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v >= r)
		case e.consume("<"):
			r, err := e.shift()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v < r)
		case e.consume(">"):
			r, err := e.shift()
			if err != nil {
				return 0, err
			}
			v = boolToInt(v > r)
		default:
			return v, nil
		}
	}
}

func (e *exprEval) shift() (int64, error) {
	v, err := e.additive()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.consume("<<"):
			r, err := e.additive()
			if err != nil {
				return 0, err
			}
			v <<= uint64(r)
		case e.consume(">>"):
			r, err := e.additive()
			if err != nil {
				return 0, err
			}
			v >>= uint64(r)
		default:
			return v, nil
		}
	}
}

func (e *exprEval) additive() (int64, error) {
	v, err := e.multiplicative()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.consume("+"):
			r, err := e.multiplicative()
			if err != nil {
				return 0, err
			}
			v += r
		case e.consume("-"):
			r, err := e.multiplicative()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (e *exprEval) multiplicative() (int64, error) {
	v, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.consume("*"):
			r, err := e.unary()
			if err != nil {
				return 0, err
			}
			v *= r
		case e.consume("/"):
			r, err := e.unary()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, &Error{Msg: "division by zero in #if expression"}
			}
			v /= r
		case e.consume("%"):
			r, err := e.unary()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, &Error{Msg: "division by zero in #if expression"}
			}
			v %= r
		default:
			return v, nil
		}
	}
}

func (e *exprEval) unary() (int64, error) {
	switch {
	case e.consume("+"):
		return e.unary()
	case e.consume("-"):
		v, err := e.unary()
		return -v, err
	case e.consume("!"):
		v, err := e.unary()
		return boolToInt(v == 0), err
	case e.consume("~"):
		v, err := e.unary()
		return ^v, err
	}
	return e.primary()
}

func (e *exprEval) primary() (int64, error) {
	t := e.peek()
	if t == nil {
		return 0, &Error{Msg: "unexpected end of #if expression"}
	}
	if e.consume("(") {
		v, err := e.conditional()
		if err != nil {
			return 0, err
		}
		if !e.consume(")") {
			return 0, &Error{Msg: "expected ')' in #if expression"}
		}
		return v, nil
	}
	if t.Kind == token.Number {
		e.pos++
		return int64(t.IntValue), nil
	}
	return 0, &Error{Filename: t.Pos.Filename, Line: t.Pos.Line, Msg: "invalid token in #if expression: " + t.Lexeme}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
