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

import "github.com/M366/zcc/internal/token"

// keywords lists the reserved words recognized after preprocessing. Keeping
// this as a set, rather than teaching the lexer about reserved words,
// avoids the lexer having to know anything about macro expansion: a keyword
// spelled out by a macro is still a keyword once expansion is done.
var keywords = map[string]bool{
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"do": true, "switch": true, "case": true, "default": true, "break": true,
	"continue": true, "goto": true, "sizeof": true, "void": true, "char": true,
	"short": true, "int": true, "long": true, "float": true, "double": true,
	"signed": true, "unsigned": true, "_Bool": true, "struct": true, "union": true,
	"enum": true, "typedef": true, "static": true, "extern": true, "const": true,
	"volatile": true, "restrict": true, "inline": true, "_Alignof": true,
	"_Alignas": true, "_Noreturn": true, "_Generic": true, "auto": true, "register": true,
}

// convertKeywords reclassifies identifier tokens spelling a reserved word
// as Keyword tokens, in a single pass once preprocessing is finished.
func convertKeywords(tok *token.Token) {
	for t := tok; t != nil && t.Kind != token.EOF; t = t.Next {
		if t.Kind == token.Ident && keywords[t.Lexeme] {
			t.Kind = token.Keyword
		}
	}
}
