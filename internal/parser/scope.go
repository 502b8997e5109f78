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

// Package parser turns a preprocessed, keyword-converted token stream into
// the typed ast.Program the code generator consumes, per §5.
package parser

import (
	"github.com/samber/lo"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/types"
)

// varScopeEntry is one ordinary-identifier binding: either a real Var or a
// typedef name, which share one namespace in C.
type varScopeEntry struct {
	name    string
	v       *ast.Var
	typeDef *types.Type
	enumVal *int64
}

// tagScopeEntry is one struct/union/enum tag binding; tags live in their
// own namespace, separate from ordinary identifiers.
type tagScopeEntry struct {
	name string
	ty   *types.Type
}

type scope struct {
	vars []*varScopeEntry
	tags []*tagScopeEntry
}

// scopeStack is the parser's nested-block lookup chain: the innermost
// scope is searched first, per §5's block-scoping rule.
type scopeStack struct {
	frames []*scope
}

func newScopeStack() *scopeStack {
	s := &scopeStack{}
	s.push()
	return s
}

func (s *scopeStack) push() {
	s.frames = append(s.frames, &scope{})
}

func (s *scopeStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *scopeStack) top() *scope {
	return s.frames[len(s.frames)-1]
}

func (s *scopeStack) declareVar(name string, v *ast.Var) {
	top := s.top()
	top.vars = append(top.vars, &varScopeEntry{name: name, v: v})
}

func (s *scopeStack) declareTypedef(name string, ty *types.Type) {
	top := s.top()
	top.vars = append(top.vars, &varScopeEntry{name: name, typeDef: ty})
}

func (s *scopeStack) declareEnumConst(name string, val int64) {
	top := s.top()
	s.top().vars = append(top.vars, &varScopeEntry{name: name, enumVal: &val})
}

func (s *scopeStack) declareTag(name string, ty *types.Type) {
	top := s.top()
	top.tags = append(top.tags, &tagScopeEntry{name: name, ty: ty})
}

func (s *scopeStack) findVar(name string) *varScopeEntry {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if e, ok := lo.Find(s.frames[i].vars, func(e *varScopeEntry) bool { return e.name == name }); ok {
			return e
		}
	}
	return nil
}

func (s *scopeStack) findTag(name string) *tagScopeEntry {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if e, ok := lo.Find(s.frames[i].tags, func(e *tagScopeEntry) bool { return e.name == name }); ok {
			return e
		}
	}
	return nil
}

// isTypedefName reports whether name was bound to a type by an earlier
// typedef, the check the declaration parser needs to tell "int (*x)" (a
// declarator) apart from "T (*x)" where T is a typedef (also a declarator,
// but of a different base type).
func (s *scopeStack) isTypedefName(name string) bool {
	e := s.findVar(name)
	return e != nil && e.typeDef != nil
}
