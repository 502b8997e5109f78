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
	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/types"
)

// typeResolver fills in Node.Type for every expression of a translation
// unit, once it has been fully parsed: the parser builds nodes bottom-up
// as it reads tokens, but a member access, a binary operator's result
// type, or a function call's return type can only be known once both
// operands (or, for a call, the callee's declaration) have been seen,
// which may appear later in the source than the call site itself. The
// original's add_type runs the same way, once per top-level declaration.
type typeResolver struct {
	funcReturnTypes map[string]*types.Type
}

func resolveTypes(prog *ast.Program) error {
	r := &typeResolver{funcReturnTypes: make(map[string]*types.Type)}
	for _, fn := range prog.Functions {
		r.funcReturnTypes[fn.Name] = fn.ReturnType
	}
	for _, v := range prog.Globals {
		if v.Type.Kind == types.Func {
			r.funcReturnTypes[v.Name] = v.Type.ReturnType
		}
	}

	for _, fn := range prog.Functions {
		for _, n := range fn.Body {
			if err := r.stmt(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *typeResolver) stmt(n *ast.Node) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.NdBlock, ast.NdStmtExpr:
		for _, s := range n.Body {
			if err := r.stmt(s); err != nil {
				return err
			}
		}
		if n.Kind == ast.NdStmtExpr && len(n.Body) > 0 {
			last := n.Body[len(n.Body)-1]
			if last.Kind == ast.NdExprStmt {
				n.Type = last.LHS.Type
			}
		}
		return nil
	case ast.NdIf:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		if err := r.stmt(n.Then); err != nil {
			return err
		}
		return r.stmt(n.Els)
	case ast.NdFor:
		if err := r.stmt(n.Init); err != nil {
			return err
		}
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		if err := r.expr(n.Inc); err != nil {
			return err
		}
		return r.stmt(n.Then)
	case ast.NdDo:
		if err := r.stmt(n.Then); err != nil {
			return err
		}
		return r.expr(n.Cond)
	case ast.NdSwitch:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		return r.stmt(n.Then)
	case ast.NdCase:
		return r.stmt(n.LHS)
	case ast.NdLabel:
		return r.stmt(n.LHS)
	case ast.NdReturn:
		return r.expr(n.LHS)
	case ast.NdExprStmt:
		return r.expr(n.LHS)
	case ast.NdBreak, ast.NdContinue, ast.NdGoto:
		return nil
	}
	return r.expr(n)
}

// expr fills n.Type (and n.Member for NdMember) bottom-up.
func (r *typeResolver) expr(n *ast.Node) error {
	if n == nil || n.Type != nil {
		return nil
	}

	switch n.Kind {
	case ast.NdNum:
		n.Type = types.TyInt
		return nil

	case ast.NdVar:
		n.Type = n.VarRef.Type
		return nil

	case ast.NdAdd, ast.NdSub, ast.NdMul, ast.NdDiv, ast.NdMod,
		ast.NdBitAnd, ast.NdBitOr, ast.NdBitXor, ast.NdShl, ast.NdShr:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if err := r.expr(n.RHS); err != nil {
			return err
		}
		if n.LHS.Type.IsPointerLike() {
			n.Type = types.PointerTo(n.LHS.Type.Base)
		} else {
			n.Type = types.CommonType(n.LHS.Type, n.RHS.Type)
		}
		return nil

	case ast.NdEq, ast.NdNe, ast.NdLt, ast.NdLe, ast.NdLogAnd, ast.NdLogOr, ast.NdNot:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if err := r.expr(n.RHS); err != nil {
			return err
		}
		n.Type = types.TyInt
		return nil

	case ast.NdAssign:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if err := r.expr(n.RHS); err != nil {
			return err
		}
		n.Type = n.LHS.Type
		return nil

	case ast.NdComma:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if err := r.expr(n.RHS); err != nil {
			return err
		}
		n.Type = n.RHS.Type
		return nil

	case ast.NdCond:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		if err := r.expr(n.Then); err != nil {
			return err
		}
		if err := r.expr(n.Els); err != nil {
			return err
		}
		if n.Then.Type != nil && n.Then.Type.IsNumeric() && n.Els.Type != nil && n.Els.Type.IsNumeric() {
			n.Type = types.CommonType(n.Then.Type, n.Els.Type)
		} else {
			n.Type = n.Then.Type
		}
		return nil

	case ast.NdNeg:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if n.LHS.Type.IsFlonum() {
			n.Type = n.LHS.Type
		} else {
			n.Type = types.PromoteInt(n.LHS.Type)
		}
		return nil

	case ast.NdBitNot:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		n.Type = types.PromoteInt(n.LHS.Type)
		return nil

	case ast.NdAddr:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if n.LHS.Type.Kind == types.Array {
			n.Type = types.PointerTo(n.LHS.Type.Base)
		} else {
			n.Type = types.PointerTo(n.LHS.Type)
		}
		return nil

	case ast.NdDeref:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		if n.LHS.Type.Base == nil {
			return &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "invalid pointer dereference"}
		}
		n.Type = n.LHS.Type.Base
		return nil

	case ast.NdMember:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		baseTy := n.LHS.Type
		if baseTy == nil || (baseTy.Kind != types.Struct && baseTy.Kind != types.Union) {
			return &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "not a struct or union"}
		}
		m := baseTy.FindMember(n.MemberName)
		if m == nil {
			return &Error{Filename: n.Tok.Pos.Filename, Line: n.Tok.Pos.Line, Msg: "no such member: " + n.MemberName}
		}
		n.Member = m
		n.Type = m.Type
		return nil

	case ast.NdCast:
		if err := r.expr(n.LHS); err != nil {
			return err
		}
		return nil // n.Type was already set by the parser when it built the cast

	case ast.NdFuncall:
		for _, a := range n.Args {
			if err := r.expr(a); err != nil {
				return err
			}
		}
		if ret, ok := r.funcReturnTypes[n.FuncName]; ok && ret != nil {
			n.Type = ret
		} else {
			n.Type = types.TyInt
		}
		return nil

	case ast.NdVaStart:
		for _, a := range n.Args {
			if err := r.expr(a); err != nil {
				return err
			}
		}
		n.Type = types.TyVoid
		return nil

	case ast.NdStmtExpr:
		return r.stmt(n)
	}

	return nil
}
