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

// assignLocalOffsets fills in Var.Offset for every local of every function,
// once the whole translation unit has been parsed, per §6's frame layout:
// each local is placed at a negative, alignment-respecting displacement
// from the frame base, and the function's StackSize is the 16-byte-aligned
// total (the base reserves the callee-saved register save area and, for
// variadic functions, the register-argument spill area ahead of it).
func assignLocalOffsets(prog *ast.Program) {
	for _, fn := range prog.Functions {
		base := 32
		if fn.IsVariadic {
			base = 80 // callee-saved area (32) + register save area (48)
		}
		offset := base
		for _, v := range fn.Locals {
			offset = types.AlignTo(offset, v.Align)
			offset += v.Type.Size
			v.Offset = -offset
		}
		fn.StackSize = types.AlignTo(offset, 16)
	}
}
