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

// Package diag implements the caret-underlined error sink that the lexer,
// preprocessor, parser and code generator all report fatal errors through.
//
// The sink is a write-only stream; §1 of the specification calls it out as
// a collaborator external to the compilation pipeline, so it is exposed
// here only behind the Reporter interface the core stages consume.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/M366/zcc/internal/token"
)

// Reporter is the interface every pipeline stage reports fatal errors
// through. It is intentionally narrow: a single source line, a byte
// column within it, and a message.
type Reporter interface {
	// Fatalf formats a caret-pointed error at pos and terminates the
	// process with exit status 1. It never returns.
	Fatalf(pos token.Position, line string, format string, args ...interface{})

	// FatalTokf is a convenience wrapper that locates tok's source line
	// through a Source lookup before delegating to Fatalf.
	FatalTokf(tok *token.Token, format string, args ...interface{})
}

// Source resolves a filename and line number to the text of that line, so
// a Reporter can quote the line a token's Position refers to.
type Source interface {
	Line(filename string, line int) string
}

// Sink is the concrete Reporter used by the CLI driver. It writes to Out
// (normally os.Stderr) in the form:
//
//	path:line: <source line>
//	         ^ <message>
type Sink struct {
	Out    io.Writer
	Source Source

	// Exit is called after writing the message; overridable in tests.
	Exit func(code int)
}

// NewSink returns a Sink that writes to os.Stderr and calls os.Exit.
func NewSink(src Source) *Sink {
	return &Sink{Out: os.Stderr, Source: src, Exit: os.Exit}
}

// Fatalf implements Reporter.
func (s *Sink) Fatalf(pos token.Position, line string, format string, args ...interface{}) {
	indent, _ := fmt.Fprintf(s.Out, "%s:%d: ", pos.Filename, pos.Line)
	fmt.Fprintf(s.Out, "%s\n", line)
	fmt.Fprintf(s.Out, "%s^ ", strings.Repeat(" ", indent+pos.Column))
	fmt.Fprintf(s.Out, format, args...)
	fmt.Fprintln(s.Out)
	if s.Exit != nil {
		s.Exit(1)
	}
}

// FatalTokf implements Reporter.
func (s *Sink) FatalTokf(tok *token.Token, format string, args ...interface{}) {
	var line string
	if s.Source != nil && tok != nil {
		line = s.Source.Line(tok.Pos.Filename, tok.Pos.Line)
	}
	pos := token.Position{Filename: "<input>", Line: 1}
	if tok != nil {
		pos = tok.Pos
	}
	s.Fatalf(pos, line, format, args...)
}
