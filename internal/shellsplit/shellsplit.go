// Package shellsplit decides whether a command string can be executed as
// a direct argv (no shell fork needed) or whether it requires a real
// shell for pipes, redirections, globs, or variable expansion.
//
// Parsing is done with mvdan.cc/sh/v3/syntax, the same POSIX shell
// grammar mvdan.cc/sh's interpreter uses, so "is this simple" agrees with
// how a real shell would parse the string.
package shellsplit

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Split returns the argv for command if it is a single simple command
// with no pipes, redirects, background execution, or substitutions —
// just a literal command name and literal arguments. ok is false if the
// command needs a real shell (mirrors the core's decision to fall back
// to `sh -c command` in that case).
func Split(command string) (argv []string, ok bool) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, false
	}
	if len(file.Stmts) != 1 {
		return nil, false
	}

	stmt := file.Stmts[0]
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return nil, false
	}

	call, isCall := stmt.Cmd.(*syntax.CallExpr)
	if !isCall || len(call.Assigns) > 0 {
		return nil, false
	}

	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		lit, simple := literalWord(w)
		if !simple {
			return nil, false
		}
		words = append(words, lit)
	}
	if len(words) == 0 {
		return nil, false
	}
	return words, true
}

func literalWord(w *syntax.Word) (string, bool) {
	if len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return "", false
	}
	if strings.ContainsAny(lit.Value, "*?[") {
		return "", false // glob pattern: needs a shell to expand
	}
	return lit.Value, true
}
