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

package compiler

import (
	"strings"
	"testing"

	"github.com/M366/zcc/internal/parser"
)

// compile runs the full pipeline and fails the test on any error, the way
// a conforming input is expected to behave end to end (§8).
func compile(t *testing.T, src string) string {
	t.Helper()
	tu := New("test.c", src+"\n", Options{})
	asm, err := tu.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return asm
}

// TestEndToEnd_Scenarios exercises §8's numbered scenarios at the
// assembly-shape level: a conforming compiler must emit a valid
// translation unit, carry the right symbol, and never leave the
// register stack discipline violated (which Compile would already have
// surfaced as a codegen error).
func TestEndToEnd_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"arithmetic", "int main(){ return 2+3*4; }"},
		{"recursion", "int fact(int n){ return n<2?1:n*fact(n-1); } int main(){ return fact(5); }"},
		{"array", "int main(){ int a[3]; a[0]=1; a[1]=2; a[2]=3; return a[0]+a[1]+a[2]; }"},
		{"string-call", `int printf(); int main(){ char *s="hi"; printf("%s\n",s); return 0; }`},
		{"struct", "struct P{int x,y;}; int main(){ struct P p; p.x=10; p.y=32; return p.x+p.y; }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm := compile(t, tt.src)
			if !strings.Contains(asm, ".intel_syntax noprefix") {
				t.Error("missing .intel_syntax noprefix preface")
			}
			if !strings.Contains(asm, ".globl main") {
				t.Error("main is not exported as .globl")
			}
			if !strings.Contains(asm, "main:") {
				t.Error("missing main: label")
			}
			if !strings.Contains(asm, "ret") {
				t.Error("missing ret in generated function")
			}
		})
	}
}

func TestCompile_SectionOrder(t *testing.T) {
	asm := compile(t, "int g; int h = 3; int main(){ return h; }")
	bss := strings.Index(asm, ".bss")
	data := strings.Index(asm, ".data")
	text := strings.Index(asm, ".text")
	if bss == -1 || data == -1 || text == -1 {
		t.Fatalf("expected .bss, .data and .text sections, got:\n%s", asm)
	}
	if !(bss < data && data < text) {
		t.Errorf(".bss/.data/.text out of order (%d, %d, %d)", bss, data, text)
	}
}

func TestCompile_StaticNotExported(t *testing.T) {
	asm := compile(t, "static int helper(){ return 1; } int main(){ return helper(); }")
	if strings.Contains(asm, ".globl helper") {
		t.Error("static function helper must not be .globl")
	}
	if !strings.Contains(asm, ".globl main") {
		t.Error("main must be .globl")
	}
}

func TestPreprocess_MacroExpansionAndConditionals(t *testing.T) {
	src := "#define TWO 2\n#if TWO == 2\nint main(){ return TWO; }\n#else\nint main(){ return 0; }\n#endif\n"
	tu := New("test.c", src, Options{})
	toks, err := tu.Preprocess()
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}
	out := PrintTokens(toks)
	if strings.Contains(out, "#") {
		t.Errorf("directives should be fully consumed, got:\n%s", out)
	}
	if strings.Count(out, "main") != 1 {
		t.Errorf("expected exactly one surviving main definition, got:\n%s", out)
	}
}

func TestCompile_FatalErrorCarriesPosition(t *testing.T) {
	tu := New("bad.c", "int main(){ return undeclared_name; }\n", Options{})
	_, err := tu.Compile()
	if err == nil {
		t.Fatal("expected a parse error for an undefined identifier")
	}
	perr, ok := err.(*parser.Error)
	if !ok {
		t.Fatalf("error = %T, want *parser.Error", err)
	}
	if perr.Filename != "bad.c" || perr.Line != 1 {
		t.Errorf("error position = %s:%d, want bad.c:1", perr.Filename, perr.Line)
	}
}
