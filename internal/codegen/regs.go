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

// intRegs64/32/16/8 name the six caller-saved-but-callee-preserved-by-us
// general registers the expression generator treats as a small register
// file, per §4.5: r10..r15, never the ABI argument/return registers,
// so a function call never clobbers a value still live on the stack.
var (
	intRegs64 = [6]string{"r10", "r11", "r12", "r13", "r14", "r15"}
	intRegs32 = [6]string{"r10d", "r11d", "r12d", "r13d", "r14d", "r15d"}
	intRegs16 = [6]string{"r10w", "r11w", "r12w", "r13w", "r14w", "r15w"}
	intRegs8  = [6]string{"r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}

	floatRegs = [6]string{"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13"}
)

// intReg returns the name of the index-th integer register, at the given
// operand width in bytes.
func intReg(index, size int) string {
	switch size {
	case 1:
		return intRegs8[index]
	case 2:
		return intRegs16[index]
	case 4:
		return intRegs32[index]
	default:
		return intRegs64[index]
	}
}

func floatReg(index int) string {
	return floatRegs[index]
}

// push reserves the next free register-stack slot, failing with the
// fatal "register out of range" error §4.5 and §7 both name once all six
// slots are in use: this generator's expression nesting depth is bounded
// by the register file, not the host stack.
func (g *Generator) push() (int, error) {
	if g.top >= 6 {
		return 0, &Error{Msg: "register out of range"}
	}
	idx := g.top
	g.top++
	return idx, nil
}

// pop releases the most recently reserved slot, returning its index.
func (g *Generator) pop() int {
	g.top--
	return g.top
}

// assertEmpty checks the §4.5 invariant that every statement leaves the
// register stack empty.
func (g *Generator) assertEmpty() error {
	if g.top != 0 {
		return &Error{Msg: "internal error: register stack not empty at statement boundary"}
	}
	return nil
}
