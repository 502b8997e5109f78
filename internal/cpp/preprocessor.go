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
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/M366/zcc/internal/lexer"
	"github.com/M366/zcc/internal/token"
)

// LexFunc tokenizes one file's contents into a token list terminated by an
// EOF token. The preprocessor is injected with this instead of importing
// the lexer package's concrete type directly, so tests can drive it with
// synthetic token lists that never touch real source text.
type LexFunc func(filename, src string) (*token.Token, error)

// ReadIncludeFunc resolves an #include target to a filename and its
// contents. quoted is true for "name.h", false for <name.h>. curDir is the
// directory containing the file doing the including, searched first for
// quoted includes per §4.2.
type ReadIncludeFunc func(curDir, name string, quoted bool, searchPaths []string) (filename, contents string, ok bool)

// Error is a fatal preprocessing error.
type Error struct {
	Filename string
	Line     int
	Msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Msg)
}

// Preprocessor expands macros, evaluates conditional inclusion, and resolves
// #include directives over a token stream, per §4.2.
type Preprocessor struct {
	Macros      *MacroTable
	SearchPaths []string
	Lex         LexFunc
	ReadInclude ReadIncludeFunc

	condStack []*condFrame
}

type condFrame struct {
	included bool // whether the currently active branch's tokens are kept
	anyTrue  bool // whether this if-chain has taken a true branch yet
	hasElse  bool
	line     int
}

// New builds a Preprocessor with an empty macro table and the predefined
// macros installed.
func New(searchPaths []string, lex LexFunc, readInclude ReadIncludeFunc) *Preprocessor {
	p := &Preprocessor{
		Macros:      NewMacroTable(),
		SearchPaths: searchPaths,
		Lex:         lex,
		ReadInclude: readInclude,
	}
	p.definePredefined()
	return p
}

func (p *Preprocessor) definePredefined() {
	p.Macros.Define(&Macro{Name: "__STDC__", ObjLike: true, Body: &token.Token{Kind: token.PPNumber, Lexeme: "1"}})
}

// Process runs the full preprocessing pass over tok (the primary file's
// lexed tokens) and returns the expanded, directive-free, keyword-converted
// token list, with every pp-number converted to a Number, ready for the
// parser.
func (p *Preprocessor) Process(tok *token.Token) (*token.Token, error) {
	out, err := p.preprocess(tok)
	if err != nil {
		return nil, err
	}
	convertKeywords(out)
	if err := lexer.ConvertPPNumbers(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Preprocessor) preprocess(tok *token.Token) (*token.Token, error) {
	var headDummy token.Token
	cur := &headDummy

	for tok != nil && tok.Kind != token.EOF {
		expanded, rest, err := p.tryExpandMacro(tok)
		if err != nil {
			return nil, err
		}
		if expanded {
			tok = rest
			continue
		}

		if !isHashAtBOL(tok) {
			cur.Next = tok
			cur = tok
			tok = tok.Next
			continue
		}

		start := tok
		directiveTok := tok.Next
		if directiveTok == nil || directiveTok.Kind == token.EOF || directiveTok.AtBOL {
			// Null directive: "#" alone on a line.
			tok = directiveTok
			continue
		}

		var next *token.Token
		var handled bool
		var err2 error
		switch directiveTok.Lexeme {
		case "include":
			next, err2 = p.handleInclude(directiveTok.Next)
			handled = true
		case "define":
			next, err2 = p.handleDefine(directiveTok.Next)
			handled = true
		case "undef":
			next, err2 = p.handleUndef(directiveTok.Next)
			handled = true
		case "if":
			next, err2 = p.handleIf(directiveTok.Next, start.Pos.Line)
			handled = true
		case "ifdef":
			next, err2 = p.handleIfdef(directiveTok.Next, start.Pos.Line, false)
			handled = true
		case "ifndef":
			next, err2 = p.handleIfdef(directiveTok.Next, start.Pos.Line, true)
			handled = true
		case "elif":
			next, err2 = p.handleElif(directiveTok.Next, start.Pos.Line)
			handled = true
		case "else":
			next, err2 = p.handleElse(directiveTok.Next, start.Pos.Line)
			handled = true
		case "endif":
			next, err2 = p.handleEndif(directiveTok.Next, start.Pos.Line)
			handled = true
		case "error":
			err2 = &Error{Filename: directiveTok.Pos.Filename, Line: directiveTok.Pos.Line, Msg: "#error " + lineText(directiveTok.Next)}
			handled = true
		case "line":
			next, err2 = p.handleLine(directiveTok.Next, directiveTok.Pos.Line)
			handled = true
		case "pragma":
			next = skipLine(directiveTok.Next)
			handled = true
		}
		if err2 != nil {
			return nil, err2
		}
		if handled {
			tok = next
			continue
		}

		return nil, &Error{Filename: directiveTok.Pos.Filename, Line: directiveTok.Pos.Line, Msg: "invalid preprocessing directive: #" + directiveTok.Lexeme}
	}
	cur.Next = tok
	return headDummy.Next, nil
}

func isHashAtBOL(tok *token.Token) bool {
	return tok.AtBOL && tok.Is("#")
}

// skipLine discards tokens up to and including the end of the current
// logical line (the next token at the start of a line, or EOF).
func skipLine(tok *token.Token) *token.Token {
	for tok != nil && tok.Kind != token.EOF && !tok.AtBOL {
		tok = tok.Next
	}
	return tok
}

func lineText(tok *token.Token) string {
	s := ""
	for t := tok; t != nil && t.Kind != token.EOF && !t.AtBOL; t = t.Next {
		if s != "" {
			s += " "
		}
		s += t.Lexeme
	}
	return s
}

// --- #include -------------------------------------------------------------

func (p *Preprocessor) handleInclude(tok *token.Token) (*token.Token, error) {
	if tok == nil {
		return nil, &Error{Msg: "expected a filename after #include"}
	}
	var name string
	var quoted bool
	switch {
	case tok.Kind == token.Str:
		name = string(tok.StrValue[:len(tok.StrValue)-1]) // drop NUL
		quoted = true
	case tok.Is("<"):
		name = ""
		t := tok.Next
		for t != nil && !t.Is(">") {
			name += t.Lexeme
			t = t.Next
		}
		if t == nil {
			return nil, &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: "expected '>' to close #include"}
		}
		tok = t
		quoted = false
	default:
		return nil, &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: "invalid #include directive"}
	}

	curDir := filepath.Dir(tok.Pos.Filename)
	filename, contents, ok := p.ReadInclude(curDir, name, quoted, p.SearchPaths)
	if !ok {
		return nil, &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: fmt.Sprintf("%s: file not found", name)}
	}
	included, err := p.Lex(filename, contents)
	if err != nil {
		return nil, err
	}
	rest := skipLine(tok.Next)

	if included == nil || included.Kind == token.EOF {
		return rest, nil
	}
	last := included
	for last.Next != nil && last.Next.Kind != token.EOF {
		last = last.Next
	}
	last.Next = rest
	return included, nil
}

// handleLine implements "#line N" and "#line N \"filename\"": every token
// from here to the end of the current token list is renumbered as if the
// next line were N, and reassigned to filename when one is given, per §4.2.
func (p *Preprocessor) handleLine(tok *token.Token, directiveLine int) (*token.Token, error) {
	if tok == nil || tok.Kind != token.PPNumber {
		return nil, &Error{Line: directiveLine, Msg: "expected a line number after #line"}
	}
	n, err := strconv.Atoi(tok.Lexeme)
	if err != nil {
		return nil, &Error{Line: directiveLine, Msg: "expected a line number after #line"}
	}
	tok = tok.Next

	var filename string
	haveFilename := false
	if tok != nil && tok.Kind == token.Str {
		filename = string(tok.StrValue[:len(tok.StrValue)-1])
		haveFilename = true
		tok = tok.Next
	}

	rest := skipLine(tok)
	offset := n - directiveLine - 1
	for t := rest; t != nil && t.Kind != token.EOF; t = t.Next {
		t.Pos.Line += offset
		if haveFilename {
			t.Pos.Filename = filename
		}
	}
	return rest, nil
}

// --- #define / #undef ------------------------------------------------------

func (p *Preprocessor) handleDefine(tok *token.Token) (*token.Token, error) {
	if tok == nil || tok.Kind != token.Ident {
		return nil, &Error{Msg: "macro name must be an identifier"}
	}
	name := tok.Lexeme
	tok = tok.Next

	m := &Macro{Name: name}
	if tok != nil && tok.Is("(") && !tok.HasSpace {
		tok = tok.Next
		for tok != nil && !tok.Is(")") {
			if len(m.Params) > 0 {
				if !tok.Is(",") {
					return nil, &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: "expected ',' in macro parameter list"}
				}
				tok = tok.Next
			}
			if tok.Is("...") {
				m.Variadic = true
				tok = tok.Next
				break
			}
			if tok.Kind != token.Ident {
				return nil, &Error{Filename: tok.Pos.Filename, Line: tok.Pos.Line, Msg: "expected an identifier in macro parameter list"}
			}
			m.Params = append(m.Params, tok.Lexeme)
			tok = tok.Next
		}
		if tok == nil || !tok.Is(")") {
			return nil, &Error{Msg: "expected ')' to close macro parameter list"}
		}
		tok = tok.Next
	} else {
		m.ObjLike = true
	}

	var bodyDummy token.Token
	cur := &bodyDummy
	for tok != nil && tok.Kind != token.EOF && !tok.AtBOL {
		cp := *tok
		cp.Next = nil
		cur.Next = &cp
		cur = cur.Next
		tok = tok.Next
	}
	m.Body = bodyDummy.Next
	p.Macros.Define(m)
	return tok, nil
}

func (p *Preprocessor) handleUndef(tok *token.Token) (*token.Token, error) {
	if tok == nil || tok.Kind != token.Ident {
		return nil, &Error{Msg: "macro name must be an identifier"}
	}
	p.Macros.Undef(tok.Lexeme)
	return skipLine(tok.Next), nil
}

// --- conditional inclusion ---------------------------------------------------

func (p *Preprocessor) handleIf(tok *token.Token, line int) (*token.Token, error) {
	exprEnd := skipLine(tok)
	v, err := p.evalConstExpr(tok, exprEnd)
	if err != nil {
		return nil, err
	}
	return p.pushCond(v != 0, exprEnd, line), nil
}

func (p *Preprocessor) handleIfdef(tok *token.Token, line int, negate bool) (*token.Token, error) {
	if tok == nil || tok.Kind != token.Ident {
		return nil, &Error{Msg: "macro name must be an identifier"}
	}
	defined := p.Macros.IsDefined(tok.Lexeme)
	if negate {
		defined = !defined
	}
	return p.pushCond(defined, skipLine(tok.Next), line), nil
}

func (p *Preprocessor) pushCond(cond bool, rest *token.Token, line int) *token.Token {
	f := &condFrame{included: cond, anyTrue: cond, line: line}
	p.condStack = append(p.condStack, f)
	if !cond {
		return p.skipToNextBranch(rest)
	}
	return rest
}

func (p *Preprocessor) handleElif(tok *token.Token, line int) (*token.Token, error) {
	f, err := p.topCond(line)
	if err != nil {
		return nil, err
	}
	if f.hasElse {
		return nil, &Error{Msg: "#elif after #else"}
	}
	exprEnd := skipLine(tok)
	if f.anyTrue {
		f.included = false
		return p.skipToNextBranch(exprEnd), nil
	}
	v, err := p.evalConstExpr(tok, exprEnd)
	if err != nil {
		return nil, err
	}
	f.included = v != 0
	f.anyTrue = f.anyTrue || f.included
	if !f.included {
		return p.skipToNextBranch(exprEnd), nil
	}
	return exprEnd, nil
}

func (p *Preprocessor) handleElse(tok *token.Token, line int) (*token.Token, error) {
	f, err := p.topCond(line)
	if err != nil {
		return nil, err
	}
	if f.hasElse {
		return nil, &Error{Msg: "duplicate #else"}
	}
	f.hasElse = true
	f.included = !f.anyTrue
	f.anyTrue = true
	rest := skipLine(tok)
	if !f.included {
		return p.skipToNextBranch(rest), nil
	}
	return rest, nil
}

func (p *Preprocessor) handleEndif(tok *token.Token, line int) (*token.Token, error) {
	if _, err := p.topCond(line); err != nil {
		return nil, err
	}
	p.condStack = p.condStack[:len(p.condStack)-1]
	return skipLine(tok), nil
}

func (p *Preprocessor) topCond(line int) (*condFrame, error) {
	if len(p.condStack) == 0 {
		return nil, &Error{Line: line, Msg: "#elif/#else/#endif without matching #if"}
	}
	return p.condStack[len(p.condStack)-1], nil
}

// skipToNextBranch advances past tokens belonging to a not-taken branch,
// tracking nested #if/#endif depth, and stops at the '#' of the next
// #elif/#else/#endif found at depth 0 (so the main loop processes it next).
func (p *Preprocessor) skipToNextBranch(tok *token.Token) *token.Token {
	depth := 0
	for tok != nil && tok.Kind != token.EOF {
		if !isHashAtBOL(tok) {
			tok = tok.Next
			continue
		}
		d := tok
		kw := ""
		if d.Next != nil {
			kw = d.Next.Lexeme
		}
		switch kw {
		case "if", "ifdef", "ifndef":
			depth++
		case "endif":
			if depth == 0 {
				return d
			}
			depth--
		case "elif", "else":
			if depth == 0 {
				return d
			}
		}
		tok = d.Next
	}
	return tok
}
