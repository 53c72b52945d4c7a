// Command sqllint checks that every inline SQL constant starts with a unique
// "--sql <uuid>" marker, so a logged marker always identifies one query.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type query struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var queries []query
	var violations []violation
	for _, target := range targets {
		qs, vs, err := lintPath(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		queries = append(queries, qs...)
		violations = append(violations, vs...)
	}
	violations = append(violations, duplicates(queries)...)

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker problems")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		os.Exit(1)
	}
}

func lintPath(target string) ([]query, []violation, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil, nil
		}
		return lintFile(target)
	}
	var queries []query
	var violations []violation
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		qs, vs, err := lintFile(path)
		if err != nil {
			return err
		}
		queries = append(queries, qs...)
		violations = append(violations, vs...)
		return nil
	})
	return queries, violations, err
}

func lintFile(path string) ([]query, []violation, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return lintSource(path, src)
}

// lintSource inspects string constants and variables in one Go file. Strings
// that read like SQL must open with a marker line.
func lintSource(path string, src []byte) ([]query, []violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var queries []query
	var violations []violation
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			line := fset.Position(bl.Pos()).Line
			m := uuidMarkerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				violations = append(violations, violation{file: path, line: line, name: name, message: "missing or invalid --sql <uuid> marker"})
				continue
			}
			queries = append(queries, query{file: path, name: name, line: line, marker: m[1]})
		}
		return true
	})
	return queries, violations, nil
}

func duplicates(queries []query) []violation {
	first := map[string]query{}
	var out []violation
	for _, q := range queries {
		prev, seen := first[q.marker]
		if !seen {
			first[q.marker] = q
			continue
		}
		out = append(out, violation{
			file:    q.file,
			line:    q.line,
			name:    q.name,
			message: fmt.Sprintf("marker %s already used by %s at %s:%d", q.marker, prev.name, prev.file, prev.line),
		})
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
