// Copyright 2023 The Shac Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main implements a check that the os/exec.Cmd functions starting a
// process aren't called directly.
//
// Instead, callers should use the execsupport package, so that processes are
// never forked while a snippet file is being written.
package main

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
)

// forking maps the os/exec.Cmd methods that fork to the suggested
// replacement.
var forking = map[string]string{
	"Start":          "execsupport.Start(%s)",
	"Run":            "execsupport.Run(%s)",
	"Output":         "execsupport.Run(%s) with Stdout set",
	"CombinedOutput": "execsupport.Run(%s) with Stdout and Stderr set",
}

// Analyzer reports direct calls to the forking os/exec.Cmd methods.
var Analyzer = &analysis.Analyzer{
	Name: "directexec",
	Doc:  "do not call os/exec.Cmd Start, Run, Output or CombinedOutput functions directly",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	for _, f := range pass.Files {
		ast.Inspect(f, func(n ast.Node) bool {
			if n == nil {
				return false
			}
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			selector, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			funcName := selector.Sel.Name
			repl, ok := forking[funcName]
			if !ok {
				return true
			}

			var obj *ast.Ident
			switch o := selector.X.(type) {
			case *ast.Ident:
				obj = o
			case *ast.SelectorExpr:
				obj = o.Sel
			default:
				return true
			}

			// Skip function calls that aren't struct methods.
			o := pass.TypesInfo.ObjectOf(obj)
			if o == nil {
				return true
			}
			if o.Type().String() == "*os/exec.Cmd" {
				pass.Reportf(n.Pos(), "do not call %s.%s() directly, use "+repl+" instead",
					obj.Name, funcName, obj.Name)
			}
			return false
		})
	}
	return nil, nil
}

func main() {
	multichecker.Main(Analyzer)
}
