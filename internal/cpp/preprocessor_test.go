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
	"testing"

	"github.com/M366/zcc/internal/lexer"
	"github.com/M366/zcc/internal/token"
)

func lexStr(t *testing.T, filename, src string) *token.Token {
	t.Helper()
	head, err := lexer.New(filename, src).Tokenize()
	if err != nil {
		t.Fatalf("lex(%q) error = %v", src, err)
	}
	return head
}

func newTestPreprocessor(t *testing.T, includes map[string]string) *Preprocessor {
	t.Helper()
	lex := func(filename, src string) (*token.Token, error) {
		return lexer.New(filename, src).Tokenize()
	}
	reader := func(curDir, name string, quoted bool, searchPaths []string) (string, string, bool) {
		contents, ok := includes[name]
		return name, contents, ok
	}
	return New(nil, lex, reader)
}

func lexemes(t *testing.T, tok *token.Token) []string {
	t.Helper()
	var out []string
	for c := tok; c != nil && c.Kind != token.EOF; c = c.Next {
		if c.Kind == token.Str {
			out = append(out, string(c.StrValue[:len(c.StrValue)-1]))
		} else {
			out = append(out, c.Lexeme)
		}
	}
	return out
}

func process(t *testing.T, p *Preprocessor, src string) []string {
	t.Helper()
	head := lexStr(t, "test.c", src)
	out, err := p.Process(head)
	if err != nil {
		t.Fatalf("Process error = %v", err)
	}
	return lexemes(t, out)
}

func TestObjectLikeMacro(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define N 5\nint a = N;")
	want := []string{"int", "a", "=", "5", ";"}
	assertEqual(t, got, want)
}

func TestFunctionLikeMacro(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define ADD(a, b) ((a) + (b))\nint x = ADD(1, 2);")
	want := []string{"int", "x", "=", "(", "(", "1", ")", "+", "(", "2", ")", ")", ";"}
	assertEqual(t, got, want)
}

func TestMacroRecursionIsHalted(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define X X\nint a = X;")
	want := []string{"int", "a", "=", "X", ";"}
	assertEqual(t, got, want)
}

func TestStringizeOperator(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define STR(x) #x\nchar *s = STR(hello world);")
	want := []string{"char", "*", "s", "=", "hello world", ";"}
	assertEqual(t, got, want)
}

func TestPasteOperator(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define CAT(a, b) a ## b\nint CAT(fo, o) = 1;")
	want := []string{"int", "foo", "=", "1", ";"}
	assertEqual(t, got, want)
}

func TestVariadicMacro(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\nLOG(\"x\", 1, 2);")
	want := []string{"printf", "(", "x", ",", "1", ",", "2", ")", ";"}
	assertEqual(t, got, want)
}

func TestIfdefTakenBranch(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define FOO\n#ifdef FOO\nint a;\n#else\nint b;\n#endif")
	want := []string{"int", "a", ";"}
	assertEqual(t, got, want)
}

func TestIfdefSkippedBranch(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#ifdef FOO\nint a;\n#else\nint b;\n#endif")
	want := []string{"int", "b", ";"}
	assertEqual(t, got, want)
}

func TestIfElifElse(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define V 2\n#if V == 1\nint a;\n#elif V == 2\nint b;\n#else\nint c;\n#endif")
	want := []string{"int", "b", ";"}
	assertEqual(t, got, want)
}

func TestNestedConditionalInSkippedBranch(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#if 0\n#if 1\nint a;\n#endif\nint b;\n#else\nint c;\n#endif")
	want := []string{"int", "c", ";"}
	assertEqual(t, got, want)
}

func TestDefinedOperator(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "#define FOO\n#if defined(FOO) && !defined(BAR)\nint a;\n#endif")
	want := []string{"int", "a", ";"}
	assertEqual(t, got, want)
}

func TestIncludeSplicesFile(t *testing.T) {
	p := newTestPreprocessor(t, map[string]string{"foo.h": "int shared;\n"})
	got := process(t, p, "#include \"foo.h\"\nint main(void) { return 0; }")
	want := []string{"int", "shared", ";", "int", "main", "(", "void", ")", "{", "return", "0", ";", "}"}
	assertEqual(t, got, want)
}

func TestKeywordConversion(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	head := lexStr(t, "test.c", "int return_value;")
	out, err := p.Process(head)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != token.Keyword {
		t.Fatalf("int token kind = %v, want Keyword", out.Kind)
	}
	if out.Next.Kind != token.Ident {
		t.Fatalf("return_value token kind = %v, want Ident (not a keyword substring match)", out.Next.Kind)
	}
}

func TestFileAndLineMacros(t *testing.T) {
	p := newTestPreprocessor(t, nil)
	got := process(t, p, "int f = __FILE__;\nint l = __LINE__;")
	if got[3] != "test.c" {
		t.Errorf("__FILE__ = %q, want test.c", got[3])
	}
	if got[len(got)-2] != "2" {
		t.Errorf("__LINE__ = %q, want 2", got[len(got)-2])
	}
}

func assertEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q (got %v, want %v)", i, got[i], want[i], got, want)
		}
	}
}
