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
	"testing"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/cpp"
	"github.com/M366/zcc/internal/lexer"
	"github.com/M366/zcc/internal/token"
)

// parse lexes, preprocesses and parses src, the same stages the compiler
// package runs ahead of Parse: the preprocessor supplies the keyword
// conversion and pp-number conversion the parser relies on.
func parse(t *testing.T, src string) (*ast.Program, error) {
	t.Helper()
	lex := func(filename, src string) (*token.Token, error) {
		return lexer.New(filename, src).Tokenize()
	}
	toks, err := lex("test.c", src)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	toks, err = cpp.New(nil, lex, cpp.DefaultReadInclude).Process(toks)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return Parse(toks)
}

func TestParse_StructLayout(t *testing.T) {
	_, err := parse(t, "struct P{int x,y;}; int main(){ struct P p; p.x=10; p.y=32; return p.x+p.y; }\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestParse_DuplicateCaseIsFatal(t *testing.T) {
	_, err := parse(t, `int main(){
		switch (1) {
		case 1: return 1;
		case 1: return 2;
		}
		return 0;
	}`+"\n")
	if err == nil {
		t.Fatal("expected a fatal error for a duplicate case value")
	}
}

func TestParse_MultipleDefaultsIsFatal(t *testing.T) {
	_, err := parse(t, `int main(){
		switch (1) {
		default: return 1;
		default: return 2;
		}
	}`+"\n")
	if err == nil {
		t.Fatal("expected a fatal error for two default labels")
	}
}

func TestParse_DistinctCaseValuesAccepted(t *testing.T) {
	_, err := parse(t, `int main(){
		switch (1) {
		case 1: return 1;
		case 2: return 2;
		default: return 0;
		}
	}`+"\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestParse_UndefinedVariableIsFatal(t *testing.T) {
	_, err := parse(t, "int main(){ return nope; }\n")
	if err == nil {
		t.Fatal("expected a fatal error for an undefined identifier")
	}
}

func TestParse_StrayBreakIsFatal(t *testing.T) {
	// This compiler resolves a break/continue's target label eagerly, at
	// parse time, against the enclosing loop/switch stack; a stray one is
	// therefore caught here rather than surviving into codegen with an
	// empty Node.Label (codegen.genStmt still rejects an empty Label as a
	// second line of defense, per §3's invariant).
	_, err := parse(t, "int main(){ break; return 0; }\n")
	if err == nil {
		t.Fatal("expected a fatal error for break outside any loop or switch")
	}
}
