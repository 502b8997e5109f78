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

// Package cpp implements the text-preprocessing stage: macro expansion,
// conditional inclusion, and file inclusion, run over the raw token stream
// produced by the lexer and before keyword reclassification.
package cpp

import (
	"github.com/samber/lo"

	"github.com/M366/zcc/internal/token"
)

// Macro is one #define'd name, either object-like ("NAME body...") or
// function-like ("NAME(params...) body...").
type Macro struct {
	Name     string
	ObjLike  bool
	Params   []string
	Variadic bool
	Body     *token.Token // linked body tokens, not including the name itself
}

// MacroTable owns the set of currently-defined macros. Lookups and
// redefinition checks happen far more often than full enumeration, so a map
// keyed by name is the natural fit; Names builds the full name set with
// lo.Keys.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable builds an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Define installs m, overwriting any prior definition of the same name.
func (t *MacroTable) Define(m *Macro) {
	t.macros[m.Name] = m
}

// Undef removes name's definition, if any.
func (t *MacroTable) Undef(name string) {
	delete(t.macros, name)
}

// Lookup returns name's macro definition, or nil if name is not defined.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.macros[name]
}

// IsDefined reports whether name currently has a definition.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// Names returns the currently-defined macro names, deduplicated and in no
// particular order.
func (t *MacroTable) Names() []string {
	return lo.Uniq(lo.Keys(t.macros))
}

// copyBody deep-copies a macro body's token list so that repeated expansions
// of the same macro never share or mutate nodes.
func copyBody(head *token.Token) *token.Token {
	if head == nil {
		return nil
	}
	dummy := &token.Token{}
	cur := dummy
	for t := head; t != nil; t = t.Next {
		cp := *t
		cp.Next = nil
		cur.Next = &cp
		cur = cur.Next
	}
	return dummy.Next
}
