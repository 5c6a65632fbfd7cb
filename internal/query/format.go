package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/graph"
)

// Format renders a set of matched target IDs in one of the formats
// accepted by the `--format` flag: pretty, list, json, or dot.
func Format(g *graph.BuildGraph, ids []string, format string) (string, error) {
	switch format {
	case "", "pretty":
		return formatPretty(ids), nil
	case "list":
		return strings.Join(ids, "\n"), nil
	case "json":
		return formatJSON(ids)
	case "dot":
		return formatDot(g, ids), nil
	default:
		return "", fmt.Errorf("query: unknown format %q", format)
	}
}

func formatPretty(ids []string) string {
	var b strings.Builder
	for i, id := range ids {
		fmt.Fprintf(&b, "%d. %s\n", i+1, id)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatJSON(ids []string) (string, error) {
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return "", fmt.Errorf("query: encoding json: %w", err)
	}
	return string(data), nil
}

// formatDot renders matched targets and the edges between them as a
// Graphviz digraph.
func formatDot(g *graph.BuildGraph, ids []string) string {
	included := make(map[string]bool, len(ids))
	for _, id := range ids {
		included[id] = true
	}

	var b strings.Builder
	b.WriteString("digraph forge {\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "  %q;\n", id)
	}

	edges := make([]string, 0)
	for _, id := range ids {
		node, ok := g.Node(id)
		if !ok {
			continue
		}
		for _, dep := range node.Dependencies() {
			if included[dep] {
				edges = append(edges, fmt.Sprintf("  %q -> %q;", id, dep))
			}
		}
	}
	sort.Strings(edges)
	for _, edge := range edges {
		b.WriteString(edge)
		b.WriteByte('\n')
	}

	b.WriteString("}")
	return b.String()
}
