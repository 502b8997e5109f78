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

// Package codegen turns a typed ast.Program into GNU-assembler-compatible,
// Intel-syntax x86-64 text: a register-stack expression generator, a
// fixed System V frame layout, and .bss/.data/.text emission, per §4.5.
package codegen

import (
	"fmt"
	"strings"

	"github.com/M366/zcc/internal/ast"
)

// Error is a fatal codegen error: register-stack overflow, a stray
// break/continue, or an address-of/assignment target that is not an
// lvalue (§7).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Generator accumulates the emitted assembly text for one translation
// unit. filename feeds the single `.file 1 "path"` directive (§4.5); this
// compiler never links multiple translation units, so one file number
// suffices.
type Generator struct {
	out      strings.Builder
	filename string

	fn *ast.Function

	// top is the register stack depth; see regs.go.
	top int

	floatConsts []floatConst
	floatLabels map[uint64]string
	signMasks   map[uint64]string
}

// Generate compiles prog to assembly text.
func Generate(prog *ast.Program, filename string) (string, error) {
	g := &Generator{filename: filename}
	g.emit(".intel_syntax noprefix")
	g.emit(".file 1 %q", filename)

	g.collectFloatConsts(prog)

	if err := g.emitData(prog); err != nil {
		return "", err
	}
	g.emitFloatConsts()

	g.emit(".text")
	for _, fn := range prog.Functions {
		if err := g.emitFunction(fn); err != nil {
			return "", err
		}
	}
	return g.out.String(), nil
}

func (g *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.out, format+"\n", args...)
}

func (g *Generator) emitLabel(name string) {
	fmt.Fprintf(&g.out, "%s:\n", name)
}

func (g *Generator) loc(n *ast.Node) {
	if n == nil || n.Tok == nil {
		return
	}
	g.emit(".loc 1 %d", n.Tok.Pos.Line)
}
