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

import (
	"os"
	"path/filepath"
)

// DefaultReadInclude resolves #include directives against the real
// filesystem: a quoted include is searched relative to curDir first, then
// falls back (like an angle-bracket include) to the -I search path list, in
// order.
func DefaultReadInclude(curDir, name string, quoted bool, searchPaths []string) (string, string, bool) {
	if filepath.IsAbs(name) {
		if contents, ok := tryRead(name); ok {
			return name, contents, true
		}
		return "", "", false
	}

	if quoted {
		path := filepath.Join(curDir, name)
		if contents, ok := tryRead(path); ok {
			return path, contents, true
		}
	}
	for _, dir := range searchPaths {
		path := filepath.Join(dir, name)
		if contents, ok := tryRead(path); ok {
			return path, contents, true
		}
	}
	return "", "", false
}

func tryRead(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(b), true
}
