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

import "github.com/M366/zcc/internal/ast"

// emitData writes every global's storage, per §4.5: uninitialised globals
// go to .bss, initialised ones to .data, with relocations inside an
// initializer emitted as `.quad label+addend` and plain bytes as `.byte`.
func (g *Generator) emitData(prog *ast.Program) error {
	var bssVars, dataVars []*ast.Var
	for _, v := range prog.Globals {
		if v.IsExtern {
			continue
		}
		if v.InitData == nil {
			bssVars = append(bssVars, v)
		} else {
			dataVars = append(dataVars, v)
		}
	}

	if len(bssVars) > 0 {
		g.emit(".bss")
		for _, v := range bssVars {
			g.emitGlobalHeader(v)
			g.emit(".zero %d", v.Type.Size)
		}
	}

	if len(dataVars) > 0 {
		g.emit(".data")
		for _, v := range dataVars {
			g.emitGlobalHeader(v)
			g.emitInitData(v)
		}
	}
	return nil
}

func (g *Generator) emitGlobalHeader(v *ast.Var) {
	if !v.IsStatic {
		g.emit(".globl %s", v.Name)
	}
	g.emit(".align %d", v.Align)
	g.emitLabel(v.Name)
}

func (g *Generator) emitInitData(v *ast.Var) {
	relocAt := make(map[int]ast.Reloc)
	for _, r := range v.Relocs {
		relocAt[r.Offset] = r
	}

	i := 0
	for i < len(v.InitData) {
		if r, ok := relocAt[i]; ok {
			if r.Addend != 0 {
				g.emit(".quad %s+%d", r.Label, r.Addend)
			} else {
				g.emit(".quad %s", r.Label)
			}
			i += 8
			continue
		}
		g.emit(".byte %d", v.InitData[i])
		i++
	}
}
