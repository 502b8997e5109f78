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

package main

import (
	"os"
	"strings"
	"testing"

	"github.com/M366/zcc/internal/compiler"
)

// TestNormalizeNewlines exercises §6's input-format rule directly, since
// run() only calls it on whatever os.ReadFile happened to return.
func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "int main(){}\r\nreturn;\r\n", "int main(){}\nreturn;\n"},
		{"cr-only", "a\rb\r", "a\nb\n"},
		{"missing-trailing-newline", "int x;", "int x;\n"},
		{"already-newline-terminated", "int x;\n", "int x;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeNewlines(tt.in); got != tt.want {
				t.Errorf("normalizeNewlines(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteOutput_StdoutAliases(t *testing.T) {
	for _, dest := range []string{"", "-", " - "} {
		if err := writeOutput(dest, ""); err != nil {
			t.Errorf("writeOutput(%q, ...) = %v, want nil (stdout alias)", dest, err)
		}
	}
}

// TestCompile_NQueenFixture exercises the golden end-to-end fixture named
// in §8 scenario 6: it must compile the full pipeline (lexer through code
// generator) without error and produce exactly one .globl main.
func TestCompile_NQueenFixture(t *testing.T) {
	raw, err := os.ReadFile("testdata/nqueen.c")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	src := normalizeNewlines(string(raw))
	tu := compiler.New("nqueen.c", src, compiler.Options{})
	asm, err := tu.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if strings.Count(asm, ".globl main") != 1 {
		t.Errorf("expected exactly one .globl main, got:\n%s", asm)
	}
	for _, fn := range []string{"abs", "printQueen", "check", "setQueen", "main"} {
		if !strings.Contains(asm, fn+":") {
			t.Errorf("missing label for function %s", fn)
		}
	}
}
