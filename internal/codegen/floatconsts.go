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

package codegen

import (
	"fmt"
	"math"

	"github.com/M366/zcc/internal/ast"
)

// floatConst is one float/double literal promoted to a read-only global,
// the way string literals are promoted by the parser: the assembler has
// no floating-point immediate syntax, so every literal needs a label.
type floatConst struct {
	label    string
	isDouble bool
	bits64   uint64
}

// signMaskLabel returns the label of the single-bit sign mask used to
// negate a float or double via XOR, allocating it on first use.
func (g *Generator) signMaskLabel(double bool) string {
	if g.floatLabels == nil {
		g.floatLabels = make(map[uint64]string)
	}
	key := uint64(0)
	if double {
		key = 1
	}
	if label, ok := g.signMasks[key]; ok {
		return label
	}
	label := fmt.Sprintf(".L..signmask%d", len(g.floatConsts))
	if g.signMasks == nil {
		g.signMasks = make(map[uint64]string)
	}
	g.signMasks[key] = label
	if double {
		g.floatConsts = append(g.floatConsts, floatConst{label: label, isDouble: true, bits64: 1 << 63})
	} else {
		g.floatConsts = append(g.floatConsts, floatConst{label: label, isDouble: false, bits64: uint64(uint32(1) << 31)})
	}
	return label
}

// collectFloatConsts walks every function body once, before any assembly
// is emitted, so the constants can be written into .data ahead of .text
// (labels must be defined before they are referenced by RIP-relative
// loads, and Generate emits data before code).
func (g *Generator) collectFloatConsts(prog *ast.Program) {
	g.floatLabels = make(map[uint64]string)
	for _, fn := range prog.Functions {
		for _, n := range fn.Body {
			g.walkFloatConsts(n)
		}
	}
}

func (g *Generator) walkFloatConsts(n *ast.Node) {
	if n == nil {
		return
	}
	if n.Kind == ast.NdNum && n.Type != nil && n.Type.IsFlonum() {
		var bits uint64
		if n.Type.Size == 4 {
			bits = uint64(math.Float32bits(float32(n.FVal)))
		} else {
			bits = math.Float64bits(n.FVal)
		}
		key := bits<<1 | boolBit(n.Type.Size == 8)
		if _, ok := g.floatLabels[key]; !ok {
			label := fmt.Sprintf(".L..fconst%d", len(g.floatConsts))
			g.floatLabels[key] = label
			g.floatConsts = append(g.floatConsts, floatConst{label: label, isDouble: n.Type.Size == 8, bits64: bits})
		}
		return
	}
	if n.Kind == ast.NdNeg && n.Type != nil && n.Type.IsFlonum() {
		g.signMaskLabel(n.Type.Size == 8)
	}
	g.walkFloatConsts(n.LHS)
	g.walkFloatConsts(n.RHS)
	g.walkFloatConsts(n.Cond)
	g.walkFloatConsts(n.Then)
	g.walkFloatConsts(n.Els)
	g.walkFloatConsts(n.Init)
	g.walkFloatConsts(n.Inc)
	for _, b := range n.Body {
		g.walkFloatConsts(b)
	}
	for _, a := range n.Args {
		g.walkFloatConsts(a)
	}
	for _, c := range n.Cases {
		g.walkFloatConsts(c)
	}
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// floatLabel returns the label for n's literal value, collected up front
// by collectFloatConsts.
func (g *Generator) floatLabel(n *ast.Node) string {
	var bits uint64
	if n.Type.Size == 4 {
		bits = uint64(math.Float32bits(float32(n.FVal)))
	} else {
		bits = math.Float64bits(n.FVal)
	}
	key := bits<<1 | boolBit(n.Type.Size == 8)
	return g.floatLabels[key]
}

func (g *Generator) emitFloatConsts() {
	if len(g.floatConsts) == 0 {
		return
	}
	g.emit(".data")
	for _, c := range g.floatConsts {
		g.emit(".align %d", map[bool]int{true: 8, false: 4}[c.isDouble])
		g.emitLabel(c.label)
		if c.isDouble {
			g.emit(".quad %d", c.bits64)
		} else {
			g.emit(".long %d", uint32(c.bits64))
		}
	}
}
