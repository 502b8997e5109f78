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

// Command zcc is the driver described as an external collaborator in §1:
// argument parsing, reading the input file, and wiring the result to
// stdout or a -o destination. Everything it does beyond that belongs to
// internal/compiler.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/M366/zcc/internal/compiler"
	"github.com/M366/zcc/internal/diag"
)

var (
	includePaths []string
	stopAtE      bool
	output       string
)

var command = &cobra.Command{
	Use:                   "zcc [-I<path>]... [-E] [-o <file>|-o<file>] <input>",
	Short:                 "a self-contained compiler for a substantial C subset, targeting x86-64 Intel-syntax assembly",
	Args:                  cobra.ExactArgs(1),
	SilenceUsage:          true,
	SilenceErrors:         true,
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		run(args[0])
	},
}

func init() {
	command.PersistentFlags().StringArrayVarP(&includePaths, "include", "I", nil, "prepend dir to the #include search path")
	command.PersistentFlags().BoolVarP(&stopAtE, "preprocess-only", "E", false, "stop after preprocessing; print tokens")
	command.PersistentFlags().StringVarP(&output, "output", "o", "", "output file ('-' or omitted means stdout)")
	command.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stderr, cmd.UsageString())
		os.Exit(1)
	})
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run reads input, compiles (or just preprocesses) it, and writes the
// result to the -o destination (stdout by default), per §6.
func run(input string) {
	raw, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	src := normalizeNewlines(string(raw))

	srcCache := compiler.NewSourceCache()
	srcCache.Add(input, src)
	sink := diag.NewSink(srcCache)

	tu := compiler.New(input, src, compiler.Options{IncludePaths: includePaths})

	var out string
	if stopAtE {
		toks, err := tu.Preprocess()
		if err != nil {
			compiler.Report(sink, srcCache, err)
			return
		}
		out = compiler.PrintTokens(toks)
	} else {
		asm, err := tu.Compile()
		if err != nil {
			compiler.Report(sink, srcCache, err)
			return
		}
		out = asm
	}

	if err := writeOutput(output, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// writeOutput writes out to stdout when dest is "", "-" or
// whitespace-trimmed "-" (the `-o-`/`-o -` forms §6 calls out explicitly),
// and to the file dest otherwise.
func writeOutput(dest, out string) error {
	if dest == "" || strings.TrimSpace(dest) == "-" {
		_, err := os.Stdout.WriteString(out)
		return err
	}
	return os.WriteFile(dest, []byte(out), 0644)
}

// normalizeNewlines reduces any line-ending convention to "\n" and
// appends a trailing newline if the last line lacks one, per §6's input
// format.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" || s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
