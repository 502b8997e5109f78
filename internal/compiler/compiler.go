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

// Package compiler wires the lexer, preprocessor, parser and code
// generator stages (§2 of the specification) into the single
// TranslationUnit entry point the CLI driver (cmd/zcc) calls. It also
// resolves every stage's distinct fatal-error type down to the
// diag.Reporter interface so every stage's errors are reported the same
// way, per §7.
package compiler

import (
	"strings"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/codegen"
	"github.com/M366/zcc/internal/cpp"
	"github.com/M366/zcc/internal/diag"
	"github.com/M366/zcc/internal/lexer"
	"github.com/M366/zcc/internal/parser"
	"github.com/M366/zcc/internal/token"
)

// Options configures one translation unit, mirroring the CLI flags of §6.
type Options struct {
	// IncludePaths is the ordered -I search path, consulted after the
	// including file's own directory for quoted includes.
	IncludePaths []string
}

// TranslationUnit holds the state of one source file working its way
// through the pipeline: its name, its raw text, and the options that
// govern preprocessing.
type TranslationUnit struct {
	Filename string
	Source   string
	Opts     Options
}

// New prepares a TranslationUnit for filename, whose contents are src.
// Per §6's input format, any line endings are reduced to "\n" and a
// trailing newline is appended if the last line lacks one; callers are
// expected to have done that normalization before calling New (the CLI
// driver does it when reading the file).
func New(filename, src string, opts Options) *TranslationUnit {
	return &TranslationUnit{Filename: filename, Source: src, Opts: opts}
}

// lex tokenizes the primary file. It is also the LexFunc the preprocessor
// calls recursively for #include'd files.
func lex(filename, src string) (*token.Token, error) {
	return lexer.New(filename, src).Tokenize()
}

// Preprocess runs the lexer and preprocessor stages only, returning the
// macro-expanded, directive-free, keyword-converted token stream used both
// by Compile and by the CLI's -E mode (§6).
func (t *TranslationUnit) Preprocess() (*token.Token, error) {
	toks, err := lex(t.Filename, t.Source)
	if err != nil {
		return nil, err
	}
	pp := cpp.New(t.Opts.IncludePaths, lex, cpp.DefaultReadInclude)
	return pp.Process(toks)
}

// Parse runs the lexer, preprocessor and parser stages, returning the
// typed AST ready for code generation.
func (t *TranslationUnit) Parse() (*ast.Program, error) {
	toks, err := t.Preprocess()
	if err != nil {
		return nil, err
	}
	return parser.Parse(toks)
}

// Compile runs the full pipeline and returns the generated assembly text
// for this translation unit, ready to write to the CLI's -o destination.
func (t *TranslationUnit) Compile() (string, error) {
	prog, err := t.Parse()
	if err != nil {
		return "", err
	}
	return codegen.Generate(prog, t.Filename)
}

// PrintTokens renders tok the way -E does (§6): whitespace and newlines
// are reconstructed from each token's AtBOL/HasSpace flags rather than
// from the original byte offsets, since macro expansion has already
// rewritten the stream by the time -E sees it.
func PrintTokens(tok *token.Token) string {
	var b strings.Builder
	first := true
	for ; tok != nil && tok.Kind != token.EOF; tok = tok.Next {
		if !first {
			if tok.AtBOL {
				b.WriteByte('\n')
			} else if tok.HasSpace {
				b.WriteByte(' ')
			}
		}
		first = false
		if tok.Kind == token.Str {
			b.WriteString(quoteStringLiteral(tok))
			continue
		}
		b.WriteString(tok.Lexeme)
	}
	b.WriteByte('\n')
	return b.String()
}

// quoteStringLiteral reproduces a string token's spelling from its decoded
// payload, since -E never re-derives it from the original source slice.
func quoteStringLiteral(tok *token.Token) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range tok.StrValue {
		if c == 0 {
			break
		}
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// SourceCache resolves a filename to one of its lines, implementing
// diag.Source for the primary file and every file pulled in by #include.
type SourceCache struct {
	lines map[string][]string
}

// NewSourceCache builds an empty cache; Add must be called for every file
// whose text a diagnostic might need to quote.
func NewSourceCache() *SourceCache {
	return &SourceCache{lines: make(map[string][]string)}
}

// Add records filename's contents, splitting it into lines once so Line
// lookups are O(1).
func (c *SourceCache) Add(filename, contents string) {
	c.lines[filename] = strings.Split(contents, "\n")
}

// Line implements diag.Source.
func (c *SourceCache) Line(filename string, line int) string {
	ls, ok := c.lines[filename]
	if !ok || line < 1 || line > len(ls) {
		return ""
	}
	return ls[line-1]
}

// Report maps any of the pipeline's stage-specific fatal error types (the
// lexer's, preprocessor's, parser's and code generator's each carry
// different location info, per §7) onto the single caret-message shape a
// diag.Reporter renders, then exits with status 1.
func Report(reporter diag.Reporter, src diag.Source, err error) {
	pos := token.Position{Filename: "<input>", Line: 1}
	msg := err.Error()
	switch e := err.(type) {
	case *lexer.Error:
		pos = token.Position{Filename: e.Filename, Line: e.Line, Column: e.Column}
		msg = e.Msg
	case *cpp.Error:
		pos = token.Position{Filename: e.Filename, Line: e.Line}
		msg = e.Msg
	case *parser.Error:
		pos = token.Position{Filename: e.Filename, Line: e.Line}
		msg = e.Msg
	case *codegen.Error:
		msg = e.Msg
	}
	var line string
	if src != nil {
		line = src.Line(pos.Filename, pos.Line)
	}
	reporter.Fatalf(pos, line, "%s", msg)
}
