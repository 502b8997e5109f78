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

package lexer

import (
	"testing"

	"github.com/M366/zcc/internal/token"
)

func lexAll(t *testing.T, src string) []*token.Token {
	t.Helper()
	l := New("test.c", src)
	head, err := l.Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	var out []*token.Token
	for tok := head; tok != nil; tok = tok.Next {
		out = append(out, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out
}

func TestTokenize_Punctuators(t *testing.T) {
	toks := lexAll(t, "a += b <<= c;")
	var got []string
	for _, tk := range toks {
		if tk.Kind != token.EOF {
			got = append(got, tk.Lexeme)
		}
	}
	want := []string{"a", "+=", "b", "<<=", "c", ";"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenize_StringEscape(t *testing.T) {
	toks := lexAll(t, `"hi\n"`)
	if toks[0].Kind != token.Str {
		t.Fatalf("kind = %v, want Str", toks[0].Kind)
	}
	want := "hi\n\x00"
	if string(toks[0].StrValue) != want {
		t.Errorf("StrValue = %q, want %q", toks[0].StrValue, want)
	}
}

func TestTokenize_CharLiteral(t *testing.T) {
	toks := lexAll(t, `'A'`)
	if toks[0].Kind != token.Number || toks[0].IntValue != 65 {
		t.Errorf("got %+v, want int 65", toks[0])
	}
}

func TestTokenize_LineComment(t *testing.T) {
	toks := lexAll(t, "1 // comment\n2")
	var nums []string
	for _, tk := range toks {
		if tk.Kind == token.PPNumber {
			nums = append(nums, tk.Lexeme)
		}
	}
	if len(nums) != 2 || nums[0] != "1" || nums[1] != "2" {
		t.Errorf("got %v", nums)
	}
}

func TestTokenize_UnclosedBlockComment(t *testing.T) {
	l := New("test.c", "/* never closes")
	if _, err := l.Tokenize(); err == nil {
		t.Fatal("expected error for unclosed block comment")
	}
}

func TestTokenize_UnclosedString(t *testing.T) {
	l := New("test.c", `"never closes`)
	if _, err := l.Tokenize(); err == nil {
		t.Fatal("expected error for unclosed string literal")
	}
}

func TestTokenize_BackslashNewlineSplice(t *testing.T) {
	toks := lexAll(t, "int ma\\\nin(void);")
	if toks[1].Lexeme != "main" {
		t.Errorf("spliced identifier = %q, want %q", toks[1].Lexeme, "main")
	}
}

func TestTokenize_UTF8Identifier(t *testing.T) {
	toks := lexAll(t, "int école;")
	if toks[1].Kind != token.Ident {
		t.Fatalf("kind = %v, want Ident", toks[1].Kind)
	}
}

func TestConvertPPNumbers_IntegerTypeInference(t *testing.T) {
	cases := []struct {
		lex  string
		want token.NumType
	}{
		{"0x80000000", token.NumUInt},
		{"2147483648", token.NumLong},
		{"0xFFFFFFFFFFFFFFFF", token.NumULong},
		{"42", token.NumInt},
		{"42U", token.NumUInt},
		{"42L", token.NumLong},
		{"42UL", token.NumULong},
	}
	for _, c := range cases {
		head := &token.Token{Next: &token.Token{Kind: token.PPNumber, Lexeme: c.lex}}
		if err := ConvertPPNumbers(head.Next); err != nil {
			t.Fatalf("ConvertPPNumbers(%q) error = %v", c.lex, err)
		}
		if head.Next.NumType != c.want {
			t.Errorf("%q -> NumType %v, want %v", c.lex, head.Next.NumType, c.want)
		}
	}
}

func TestConvertPPNumbers_Float(t *testing.T) {
	tok := &token.Token{Kind: token.PPNumber, Lexeme: "3.14", Next: &token.Token{Kind: token.EOF}}
	if err := ConvertPPNumbers(tok); err != nil {
		t.Fatal(err)
	}
	if tok.NumType != token.NumDouble || tok.FloatValue != 3.14 {
		t.Errorf("got %+v", tok)
	}
}
