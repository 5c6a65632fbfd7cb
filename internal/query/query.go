// Package query implements the `query` command's expression language:
// a small dependency-query language over a BuildGraph with two
// functions, `deps(expr)` and `rdeps(expr)`, plus a bare target label
// as the base case. The grammar is two keywords and a label token, so
// the parser is a short hand-written recursive-descent pass; a parser
// generator would be a bigger dependency than the code it replaces.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/graph"
)

// Expr is a parsed query expression.
type Expr interface {
	eval(g *graph.BuildGraph) (map[string]bool, error)
}

type labelExpr struct{ label string }

type depsExpr struct{ inner Expr }

type rdepsExpr struct{ inner Expr }

// Parse parses a query expression string such as `//foo:bar`,
// `deps(//foo:bar)`, or `rdeps(deps(//foo:bar))`.
func Parse(input string) (Expr, error) {
	p := &parser{input: strings.TrimSpace(input)}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("query: unexpected trailing input at %d: %q", p.pos, p.input[p.pos:])
	}
	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (Expr, error) {
	p.skipSpace()
	switch {
	case p.consumeKeyword("deps("):
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return depsExpr{inner: inner}, nil
	case p.consumeKeyword("rdeps("):
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return rdepsExpr{inner: inner}, nil
	default:
		return p.parseLabel()
	}
}

func (p *parser) parseLabel() (Expr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ')' && p.input[p.pos] != ' ' {
		p.pos++
	}
	if start == p.pos {
		return nil, fmt.Errorf("query: expected target label at %d", start)
	}
	return labelExpr{label: p.input[start:p.pos]}, nil
}

func (p *parser) consumeKeyword(kw string) bool {
	if strings.HasPrefix(p.input[p.pos:], kw) {
		p.pos += len(kw)
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("query: expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (e labelExpr) eval(g *graph.BuildGraph) (map[string]bool, error) {
	if _, ok := g.Node(e.label); !ok {
		return nil, fmt.Errorf("query: unknown target %q", e.label)
	}
	return map[string]bool{e.label: true}, nil
}

// eval for deps(expr) returns expr's result set plus the full
// transitive closure of each member's dependencies.
func (e depsExpr) eval(g *graph.BuildGraph) (map[string]bool, error) {
	base, err := e.inner.eval(g)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool)
	for id := range base {
		collectClosure(g, id, result, (*graph.BuildNode).Dependencies)
	}
	return result, nil
}

// eval for rdeps(expr) returns expr's result set plus the full
// transitive closure of each member's dependents (reverse deps).
func (e rdepsExpr) eval(g *graph.BuildGraph) (map[string]bool, error) {
	base, err := e.inner.eval(g)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool)
	for id := range base {
		collectClosure(g, id, result, (*graph.BuildNode).Dependents)
	}
	return result, nil
}

func collectClosure(g *graph.BuildGraph, id string, seen map[string]bool, neighbors func(*graph.BuildNode) []string) {
	if seen[id] {
		return
	}
	seen[id] = true
	node, ok := g.Node(id)
	if !ok {
		return
	}
	for _, next := range neighbors(node) {
		collectClosure(g, next, seen, neighbors)
	}
}

// Eval parses and evaluates expr against g, returning the matched
// target IDs in stable (lexical) order.
func Eval(g *graph.BuildGraph, expr string) ([]string, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	set, err := parsed.eval(g)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
