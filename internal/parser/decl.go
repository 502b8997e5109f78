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
	"strconv"

	"github.com/M366/zcc/internal/ast"
	"github.com/M366/zcc/internal/token"
	"github.com/M366/zcc/internal/types"
)

type storageClass int

const (
	scNone storageClass = iota
	scTypedef
	scStatic
	scExtern
)

// Bit counters for the base-type specifier combination grammar, mirroring
// the original's approach of tallying how many times each specifier
// keyword appeared rather than hand-writing every legal permutation.
const (
	tsVoid   = 1 << 0
	tsBool   = 1 << 2
	tsChar   = 1 << 4
	tsShort  = 1 << 6
	tsInt    = 1 << 8
	tsLong   = 1 << 10
	tsFloat  = 1 << 12
	tsDouble = 1 << 14
	tsOther  = 1 << 16
	tsSigned = 1 << 18
	tsUnsign = 1 << 19
)

// declspec parses storage-class specifiers and type specifiers, per the
// grammar: declaration-specifiers that precede a declarator.
func (p *Parser) declspec() (*types.Type, storageClass, error) {
	sclass := scNone
	counter := 0
	var ty *types.Type

	for p.isTypeSpecifierStart() {
		tok := p.cur()

		switch tok.Lexeme {
		case "typedef":
			sclass = scTypedef
			p.advance()
			continue
		case "static":
			sclass = scStatic
			p.advance()
			continue
		case "extern":
			sclass = scExtern
			p.advance()
			continue
		case "const", "volatile", "restrict", "inline", "auto", "register", "_Noreturn":
			p.advance()
			continue
		case "struct":
			st, err := p.structUnionDecl(true)
			if err != nil {
				return nil, 0, err
			}
			ty = st
			counter += tsOther
			continue
		case "union":
			st, err := p.structUnionDecl(false)
			if err != nil {
				return nil, 0, err
			}
			ty = st
			counter += tsOther
			continue
		case "enum":
			et, err := p.enumSpecifier()
			if err != nil {
				return nil, 0, err
			}
			ty = et
			counter += tsOther
			continue
		}

		if p.tok.Kind == token.Ident && p.scopes.isTypedefName(tok.Lexeme) && counter == 0 {
			e := p.scopes.findVar(tok.Lexeme)
			ty = e.typeDef
			counter += tsOther
			p.advance()
			continue
		}

		switch tok.Lexeme {
		case "void":
			counter += tsVoid
		case "_Bool":
			counter += tsBool
		case "char":
			counter += tsChar
		case "short":
			counter += tsShort
		case "int":
			counter += tsInt
		case "long":
			counter += tsLong
		case "float":
			counter += tsFloat
		case "double":
			counter += tsDouble
		case "signed":
			counter += tsSigned
		case "unsigned":
			counter += tsUnsign
		default:
			return nil, 0, p.errorf(tok, "unexpected type specifier: %s", tok.Lexeme)
		}
		p.advance()
	}

	if counter == 0 {
		return nil, 0, p.errorf(p.cur(), "expected a declaration")
	}

	base := counter &^ (tsSigned | tsUnsign)
	unsigned := counter&tsUnsign != 0

	switch base {
	case tsOther:
		// struct/union/enum/typedef already set ty.
	case tsVoid:
		ty = types.TyVoid
	case tsBool:
		ty = types.TyBool
	case tsChar:
		ty = pickSign(types.TyChar, unsigned)
	case tsShort, tsShort + tsInt:
		ty = pickSign(types.TyShort, unsigned)
	case tsInt, 0:
		ty = pickSign(types.TyInt, unsigned)
	case tsLong, tsLong + tsInt, tsLong + tsLong, tsLong + tsLong + tsInt:
		ty = pickSign(types.TyLong, unsigned)
	case tsFloat:
		ty = types.TyFloat
	case tsDouble, tsLong + tsDouble:
		ty = types.TyDouble
	default:
		if unsigned {
			ty = pickSign(types.TyInt, true)
		} else {
			return nil, 0, p.errorf(p.cur(), "invalid type specifier combination")
		}
	}

	return ty, sclass, nil
}

func pickSign(base *types.Type, unsigned bool) *types.Type {
	if !unsigned {
		return base
	}
	cp := *base
	cp.Unsigned = true
	return &cp
}

func (p *Parser) isTypeSpecifierStart() bool {
	tok := p.cur()
	if tok.Kind == token.Keyword {
		switch tok.Lexeme {
		case "void", "_Bool", "char", "short", "int", "long", "float", "double",
			"signed", "unsigned", "struct", "union", "enum", "typedef", "static",
			"extern", "const", "volatile", "restrict", "inline", "auto", "register",
			"_Noreturn":
			return true
		}
		return false
	}
	if tok.Kind == token.Ident {
		return p.scopes.isTypedefName(tok.Lexeme)
	}
	return false
}

// declarator parses a pointer/array/function declarator built on baseType,
// returning the declared name (empty for an abstract declarator) and the
// fully-formed type.
func (p *Parser) declarator(baseType *types.Type) (string, *types.Type, error) {
	ty := baseType
	for p.consume("*") {
		for p.at("const") || p.at("volatile") || p.at("restrict") {
			p.advance()
		}
		ty = types.PointerTo(ty)
	}

	if p.consume("(") {
		// Parenthesized declarator: "int (*fp)(void)". Parse the inner
		// declarator against a placeholder, then apply the outer suffix to
		// that placeholder's base before filling it in.
		placeholder := &types.Type{}
		name, inner, err := p.declarator(placeholder)
		if err != nil {
			return "", nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return "", nil, err
		}
		outer, err := p.typeSuffix(ty)
		if err != nil {
			return "", nil, err
		}
		*placeholder = *outer
		return name, inner, nil
	}

	name := ""
	if p.tok.Kind == token.Ident {
		name = p.advance().Lexeme
	}
	outer, err := p.typeSuffix(ty)
	if err != nil {
		return "", nil, err
	}
	return name, outer, nil
}

// typeSuffix parses the array/function suffix that follows a declarator's
// core, applying it to base (§5's declarator grammar is read inside-out:
// pointers bind to the name, suffixes bind to whatever the name names).
func (p *Parser) typeSuffix(base *types.Type) (*types.Type, error) {
	if p.consume("(") {
		return p.funcParams(base)
	}
	if p.consume("[") {
		length := -1
		if !p.at("]") {
			n, err := p.constExpr()
			if err != nil {
				return nil, err
			}
			length = int(n)
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		elem, err := p.typeSuffix(base)
		if err != nil {
			return nil, err
		}
		return types.ArrayOf(elem, length), nil
	}
	return base, nil
}

func (p *Parser) funcParams(returnType *types.Type) (*types.Type, error) {
	var params []*types.Type
	variadic := false

	if p.consume(")") {
		return types.FuncType(returnType, params, false), nil
	}
	if p.at("void") && p.tok.Next != nil && p.tok.Next.Is(")") {
		p.advance()
		p.advance()
		return types.FuncType(returnType, params, false), nil
	}

	for {
		if p.consume("...") {
			variadic = true
			break
		}
		pty, _, err := p.declspec()
		if err != nil {
			return nil, err
		}
		pname, pty2, err := p.declarator(pty)
		if err != nil {
			return nil, err
		}
		pty = pty2
		if pty.Kind == types.Array {
			pty = types.PointerTo(pty.Base)
		} else if pty.Kind == types.Func {
			pty = types.PointerTo(pty)
		}
		named := *pty
		named.Name = pname
		params = append(params, &named)
		if !p.consume(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return types.FuncType(returnType, params, variadic), nil
}

// structUnionDecl parses "struct [tag] [{ members }]" or the union
// equivalent, per §5's aggregate-type grammar.
func (p *Parser) structUnionDecl(isStruct bool) (*types.Type, error) {
	p.advance() // 'struct' / 'union'

	var tagName string
	if p.tok.Kind == token.Ident {
		tagName = p.advance().Lexeme
	}

	if tagName != "" && !p.at("{") {
		if e := p.scopes.findTag(tagName); e != nil {
			return e.ty, nil
		}
		// Forward reference: declare an incomplete aggregate now.
		ty := &types.Type{Kind: kindFor(isStruct), Name: tagName}
		p.scopes.declareTag(tagName, ty)
		return ty, nil
	}

	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	var members []*types.Member
	for !p.at("}") {
		baseType, _, err := p.declspec()
		if err != nil {
			return nil, err
		}
		first := true
		for !p.consume(";") {
			if !first {
				if _, err := p.expect(","); err != nil {
					return nil, err
				}
			}
			first = false
			name, mty, err := p.declarator(baseType)
			if err != nil {
				return nil, err
			}
			members = append(members, &types.Member{Name: name, Type: mty})
		}
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}

	var ty *types.Type
	if isStruct {
		ty = types.NewStructType(tagName, members)
	} else {
		ty = types.NewUnionType(tagName, members)
	}
	if tagName != "" {
		p.scopes.declareTag(tagName, ty)
	}
	return ty, nil
}

func kindFor(isStruct bool) types.Kind {
	if isStruct {
		return types.Struct
	}
	return types.Union
}

// enumSpecifier parses "enum [tag] [{ ident [= const-expr], ... }]".
func (p *Parser) enumSpecifier() (*types.Type, error) {
	p.advance() // 'enum'

	var tagName string
	if p.tok.Kind == token.Ident {
		tagName = p.advance().Lexeme
	}

	if tagName != "" && !p.at("{") {
		if e := p.scopes.findTag(tagName); e != nil {
			return e.ty, nil
		}
		return nil, p.errorf(p.cur(), "unknown enum tag: %s", tagName)
	}

	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	var val int64
	first := true
	for !p.at("}") {
		if !first {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
			if p.at("}") {
				break
			}
		}
		first = false
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.consume("=") {
			v, err := p.constExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		p.scopes.declareEnumConst(name, val)
		val++
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}

	ty := types.EnumType(tagName)
	if tagName != "" {
		p.scopes.declareTag(tagName, ty)
	}
	return ty, nil
}

func (p *Parser) parseTypedef(baseType *types.Type) error {
	first := true
	for !p.consume(";") {
		if !first {
			if _, err := p.expect(","); err != nil {
				return err
			}
		}
		first = false
		name, ty, err := p.declarator(baseType)
		if err != nil {
			return err
		}
		p.scopes.declareTypedef(name, ty)
	}
	return nil
}

func (p *Parser) parseGlobalDeclaration(baseType *types.Type, sclass storageClass) error {
	first := true
	for !p.consume(";") {
		if !first {
			if _, err := p.expect(","); err != nil {
				return err
			}
		}
		first = false
		name, ty, err := p.declarator(baseType)
		if err != nil {
			return err
		}
		v := &ast.Var{Name: name, Type: ty, Align: ty.Align, IsExtern: sclass == scExtern, IsStatic: sclass == scStatic}
		p.scopes.declareVar(name, v)
		p.prog.Globals = append(p.prog.Globals, v)
		if p.consume("=") {
			if err := p.globalInitializer(v, ty); err != nil {
				return err
			}
		}
	}
	return nil
}

// globalInitializer handles the common initializer shapes this compiler
// supports for globals: a single constant expression, or a brace-enclosed
// list of constant expressions for an array/struct.
func (p *Parser) globalInitializer(v *ast.Var, ty *types.Type) error {
	if ty.Kind == types.Array && ty.Base == types.TyChar && p.tok.Kind == token.Str {
		str := p.advance()
		v.InitData = append([]byte(nil), str.StrValue...)
		if ty.Len < 0 {
			ty.Len = len(str.StrValue)
			ty.Size = ty.Len * ty.Base.Size
		}
		return nil
	}

	var elems []int64
	if p.consume("{") {
		for !p.at("}") {
			n, err := p.constExpr()
			if err != nil {
				return err
			}
			elems = append(elems, n)
			if !p.consume(",") {
				break
			}
		}
		if _, err := p.expect("}"); err != nil {
			return err
		}
	} else {
		n, err := p.constExpr()
		if err != nil {
			return err
		}
		elems = append(elems, n)
	}

	elemSize := ty.Size
	if ty.Kind == types.Array {
		elemSize = ty.Base.Size
		if ty.Len < 0 {
			ty.Len = len(elems)
			ty.Size = ty.Len * elemSize
		}
	}
	buf := make([]byte, ty.Size)
	if ty.Kind == types.Struct {
		for i, n := range elems {
			if i < len(ty.Members) {
				m := ty.Members[i]
				writeIntLE(buf[m.Offset:], n, m.Type.Size)
			}
		}
		v.InitData = buf
		return nil
	}
	for i, n := range elems {
		writeIntLE(buf[i*elemSize:], n, elemSize)
	}
	v.InitData = buf
	return nil
}

func writeIntLE(buf []byte, v int64, size int) {
	u := uint64(v)
	for i := 0; i < size && i < len(buf); i++ {
		buf[i] = byte(u >> (8 * i))
	}
}

func (p *Parser) parseFunctionDefinition(baseType *types.Type, sclass storageClass) error {
	name, ty, err := p.declarator(baseType)
	if err != nil {
		return err
	}

	fn := &ast.Function{Name: name, ReturnType: ty.ReturnType, IsVariadic: ty.Variadic, IsStatic: sclass == scStatic}
	p.scopes.declareVar(name, &ast.Var{Name: name, Type: ty})

	p.scopes.push()
	defer p.scopes.pop()

	p.currentLocals = nil
	for i, pt := range ty.Params {
		pname := paramNameFor(ty, i)
		v := &ast.Var{Name: pname, Type: pt, IsLocal: true, Align: pt.Align}
		p.scopes.declareVar(pname, v)
		p.currentLocals = append(p.currentLocals, v)
		fn.Params = append(fn.Params, v)
	}

	body, err := p.compoundStmt()
	if err != nil {
		return err
	}
	fn.Body = body
	fn.Locals = p.currentLocals
	p.prog.Functions = append(p.prog.Functions, fn)
	return nil
}

// paramNameFor recovers parameter i's declared name, stashed on the
// parameter's own Type by funcParams. Prototypes with unnamed parameters
// fall back to a positional placeholder, since nothing references them.
func paramNameFor(ty *types.Type, i int) string {
	if i < len(ty.Params) && ty.Params[i].Name != "" {
		return ty.Params[i].Name
	}
	return paramPlaceholder(i)
}

func paramPlaceholder(i int) string {
	return "__param" + strconv.Itoa(i)
}
