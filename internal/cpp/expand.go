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
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/M366/zcc/internal/token"
)

// tryExpandMacro attempts one macro-replacement step at tok. On success it
// returns the replacement tokens spliced in front of the remainder of the
// stream; the caller continues its scan from that point so that the
// replacement is itself rescanned for further expansion, per §4.2.
func (p *Preprocessor) tryExpandMacro(tok *token.Token) (bool, *token.Token, error) {
	if tok.Kind != token.Ident {
		return false, nil, nil
	}

	switch tok.Lexeme {
	case "__FILE__":
		lit := strLiteral(tok.Pos.Filename)
		lit.Pos = tok.Pos
		lit.Next = tok.Next
		return true, lit, nil
	case "__LINE__":
		n := &token.Token{Kind: token.Number, NumType: token.NumInt, IntValue: uint64(tok.Pos.Line), Lexeme: strconv.Itoa(tok.Pos.Line), Pos: tok.Pos, Next: tok.Next}
		return true, n, nil
	}

	m := p.Macros.Lookup(tok.Lexeme)
	if m == nil || tok.HasInHideset(tok.Lexeme) {
		return false, nil, nil
	}

	if m.ObjLike {
		hs := map[string]bool{tok.Lexeme: true}
		body := instantiate(copyBody(m.Body), hs)
		if body == nil {
			return true, tok.Next, nil
		}
		last := body
		for last.Next != nil {
			last = last.Next
		}
		last.Next = tok.Next
		return true, body, nil
	}

	if tok.Next == nil || !tok.Next.Is("(") {
		return false, nil, nil
	}

	args, rparen, err := readArgs(tok.Next.Next, m)
	if err != nil {
		return false, nil, err
	}

	hs := map[string]bool{tok.Lexeme: true}
	for k := range tok.Hideset {
		if rparen.HasInHideset(k) {
			hs[k] = true
		}
	}

	body, err := p.substitute(m, args, hs)
	if err != nil {
		return false, nil, err
	}
	if body == nil {
		return true, rparen.Next, nil
	}
	last := body
	for last.Next != nil {
		last = last.Next
	}
	last.Next = rparen.Next
	return true, body, nil
}

func strLiteral(s string) *token.Token {
	return &token.Token{Kind: token.Str, Lexeme: strconv.Quote(s), StrValue: append([]byte(s), 0)}
}

// instantiate applies hs to every token in a copied body list.
func instantiate(head *token.Token, hs map[string]bool) *token.Token {
	for t := head; t != nil; t = t.Next {
		t.Hideset = mergeHidesets(t.Hideset, hs)
	}
	return head
}

func mergeHidesets(a, b map[string]bool) map[string]bool {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// readArgs splits a function-like macro invocation's argument list, which
// begins right after the opening '(', into one token list per argument,
// respecting nested parentheses so that a comma inside a nested call is not
// mistaken for an argument separator. It returns the closing ')' token.
func readArgs(tok *token.Token, m *Macro) ([][]*token.Token, *token.Token, error) {
	var args [][]*token.Token
	var cur []*token.Token
	depth := 0

	for {
		if tok == nil || tok.Kind == token.EOF {
			return nil, nil, &Error{Msg: "unterminated macro argument list for " + m.Name}
		}
		if depth == 0 && tok.Is(")") {
			args = append(args, cur)
			return args, tok, nil
		}
		if depth == 0 && tok.Is(",") {
			args = append(args, cur)
			cur = nil
			tok = tok.Next
			continue
		}
		if tok.Is("(") {
			depth++
		} else if tok.Is(")") {
			depth--
		}
		cp := *tok
		cp.Next = nil
		cur = append(cur, &cp)
		tok = tok.Next
	}
}

func argList(toks []*token.Token) *token.Token {
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

// substitute builds the replacement token list for a function-like macro
// invocation: parameters are replaced by their (macro-expanded) arguments,
// "#param" stringizes the raw argument, and "a ## b" pastes adjacent
// tokens, per §4.2.
func (p *Preprocessor) substitute(m *Macro, args [][]*token.Token, hs map[string]bool) (*token.Token, error) {
	paramIndex := func(name string) int {
		for i, param := range m.Params {
			if param == name {
				return i
			}
		}
		if name == "__VA_ARGS__" && m.Variadic {
			return len(m.Params)
		}
		return -1
	}
	argFor := func(i int) []*token.Token {
		if i == len(m.Params) && m.Variadic {
			var out []*token.Token
			for j := len(m.Params); j < len(args); j++ {
				if j > len(m.Params) {
					out = append(out, &token.Token{Kind: token.Punct, Lexeme: ","})
				}
				out = append(out, args[j]...)
			}
			return out
		}
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	var bodyToks []*token.Token
	for b := m.Body; b != nil; b = b.Next {
		bodyToks = append(bodyToks, b)
	}

	var out []*token.Token
	for i := 0; i < len(bodyToks); i++ {
		b := bodyToks[i]

		if b.Is("#") && i+1 < len(bodyToks) {
			idx := paramIndex(bodyToks[i+1].Lexeme)
			if idx < 0 {
				return nil, &Error{Msg: "'#' is not followed by a macro parameter"}
			}
			out = append(out, stringize(argFor(idx)))
			i++
			continue
		}
		if b.Is("##") && len(out) > 0 && i+1 < len(bodyToks) {
			next := bodyToks[i+1]
			var rhs []*token.Token
			if idx := paramIndex(next.Lexeme); idx >= 0 {
				rhs = argFor(idx)
			} else {
				cp := *next
				cp.Next = nil
				rhs = []*token.Token{&cp}
			}
			if len(rhs) > 0 {
				pasted := paste(out[len(out)-1], rhs[0])
				out[len(out)-1] = pasted
				out = append(out, rhs[1:]...)
			}
			i++
			continue
		}
		if idx := paramIndex(b.Lexeme); b.Kind == token.Ident && idx >= 0 {
			// Not stringized/pasted: substitute the fully macro-expanded
			// argument, unless the next body token is ## (raw paste).
			raw := argFor(idx)
			if i+1 < len(bodyToks) && bodyToks[i+1].Is("##") {
				out = append(out, cloneAll(raw)...)
			} else {
				expanded, err := p.expandTokenList(argList(raw))
				if err != nil {
					return nil, err
				}
				out = append(out, linkedToSlice(expanded)...)
			}
			continue
		}
		cp := *b
		cp.Next = nil
		out = append(out, &cp)
	}

	out = lo.Map(out, func(t *token.Token, _ int) *token.Token {
		t.Hideset = mergeHidesets(t.Hideset, hs)
		return t
	})

	var dummy token.Token
	cur := &dummy
	for _, t := range out {
		t.Next = nil
		cur.Next = t
		cur = t
	}
	return dummy.Next, nil
}

func cloneAll(toks []*token.Token) []*token.Token {
	out := make([]*token.Token, len(toks))
	for i, t := range toks {
		cp := *t
		cp.Next = nil
		out[i] = &cp
	}
	return out
}

func linkedToSlice(head *token.Token) []*token.Token {
	var out []*token.Token
	for t := head; t != nil && t.Kind != token.EOF; t = t.Next {
		out = append(out, t)
	}
	return out
}

// stringize builds the Str token "#param" produces: the argument's
// original spelling, tokens separated by a single space wherever the
// source had any whitespace, with backslashes and double quotes inside
// string/char literal tokens escaped.
func stringize(toks []*token.Token) *token.Token {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.HasSpace {
			sb.WriteByte(' ')
		}
		if t.Kind == token.Str || strings.HasPrefix(t.Lexeme, "'") {
			for i := 0; i < len(t.Lexeme); i++ {
				c := t.Lexeme[i]
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteByte(c)
			}
		} else {
			sb.WriteString(t.Lexeme)
		}
	}
	s := sb.String()
	return &token.Token{Kind: token.Str, Lexeme: strconv.Quote(s), StrValue: append([]byte(s), 0)}
}

// paste implements "a ## b": the two tokens' lexemes are concatenated into
// one new token. The result's kind is inferred from its shape rather than
// by re-running the full lexer.
func paste(a, b *token.Token) *token.Token {
	lex := a.Lexeme + b.Lexeme
	kind := token.Punct
	switch {
	case len(lex) > 0 && isIdentStart(lex[0]):
		kind = token.Ident
	case len(lex) > 0 && lex[0] >= '0' && lex[0] <= '9':
		kind = token.PPNumber
	}
	return &token.Token{Kind: kind, Lexeme: lex, Pos: a.Pos, HasSpace: a.HasSpace, Hideset: a.Hideset}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// expandTokenList fully macro-expands a standalone token list (a macro
// argument), used before substituting it into a parameter position. No
// directive handling applies here: arguments are plain expression tokens.
func (p *Preprocessor) expandTokenList(head *token.Token) (*token.Token, error) {
	eof := &token.Token{Kind: token.EOF}
	if head == nil {
		return eof, nil
	}
	last := head
	for last.Next != nil {
		last = last.Next
	}
	last.Next = eof

	var dummy token.Token
	cur := &dummy
	tok := head
	for tok != nil && tok.Kind != token.EOF {
		expanded, rest, err := p.tryExpandMacro(tok)
		if err != nil {
			return nil, err
		}
		if expanded {
			tok = rest
			continue
		}
		cur.Next = tok
		cur = tok
		tok = tok.Next
	}
	cur.Next = tok
	return dummy.Next, nil
}
