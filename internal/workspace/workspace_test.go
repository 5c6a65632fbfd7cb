package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/interfaces"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(content), 0o644))
}

func TestLoad_BuildsGraphFromManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	writeManifest(t, dir, `
workspace: demo
targets:
  - path: "."
    name: app
    kind: executable
    language: go
    sources: ["main.go"]
`)

	g, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	node, ok := g.Node("demo//.:app")
	require.True(t, ok)
	assert.Equal(t, "go", node.Target.Language)
}

func TestLoad_WiresDeclaredDependencies(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"base.go", "dependent.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("package main"), 0o644))
	}
	writeManifest(t, dir, `
workspace: demo
targets:
  - path: "."
    name: base
    language: go
    sources: ["base.go"]
  - path: "."
    name: dependent
    language: go
    sources: ["dependent.go"]
    deps: ["demo//.:base"]
`)

	g, err := Load(dir)
	require.NoError(t, err)

	dependent, ok := g.Node("demo//.:dependent")
	require.True(t, ok)
	assert.Contains(t, dependent.Dependencies(), "demo//.:base")
}

func TestLoad_ExpandsShorthandDependencyLabels(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"base.go", "dependent.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("package main"), 0o644))
	}
	writeManifest(t, dir, `
workspace: demo
targets:
  - path: "pkg"
    name: base
    language: go
    sources: ["base.go"]
  - path: "pkg"
    name: same_dir
    language: go
    sources: ["dependent.go"]
    deps: [":base"]
  - path: "other"
    name: same_ws
    language: go
    sources: ["dependent.go"]
    deps: ["//pkg:base"]
`)

	g, err := Load(dir)
	require.NoError(t, err)

	sameDir, ok := g.Node("demo//pkg:same_dir")
	require.True(t, ok)
	assert.Contains(t, sameDir.Dependencies(), "demo//pkg:base")

	sameWS, ok := g.Node("demo//other:same_ws")
	require.True(t, ok)
	assert.Contains(t, sameWS.Dependencies(), "demo//pkg:base")
}

func TestLoad_RejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
targets:
  - path: "."
    name: weird
    kind: "not-a-kind"
`)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_MissingManifestReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestNewResolver_ResolvesByWorkspacePath(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"base.go", "dependent.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("package main"), 0o644))
	}
	writeManifest(t, dir, `
workspace: demo
targets:
  - path: "pkg/base"
    name: base
    language: go
    sources: ["base.go"]
  - path: "pkg/dependent"
    name: dependent
    language: go
    sources: ["dependent.go"]
`)

	_, targets, err := ParseManifest(dir)
	require.NoError(t, err)

	resolver := NewResolver(targets)
	id, ok := resolver.Resolve(interfaces.Import{Path: "demo/pkg/base"})
	require.True(t, ok)
	assert.Equal(t, "demo//pkg/base:base", id)

	// A fully-qualified import path still resolves via the
	// longest-suffix fallback.
	id, ok = resolver.Resolve(interfaces.Import{Path: "github.com/forgebuild/forge/demo/pkg/base"})
	require.True(t, ok)
	assert.Equal(t, "demo//pkg/base:base", id)

	_, ok = resolver.Resolve(interfaces.Import{Path: "unrelated/pkg"})
	assert.False(t, ok)
}

func TestParseManifest_AssembleGraph_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	writeManifest(t, dir, `
workspace: demo
targets:
  - path: "."
    name: app
    language: go
    sources: ["main.go"]
`)

	name, targets, err := ParseManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
	require.Len(t, targets, 1)

	g, err := AssembleGraph(targets)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestLoad_DefaultsWorkspaceNameToDirBase(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
targets:
  - path: "."
    name: app
`)

	g, err := Load(dir)
	require.NoError(t, err)
	_, ok := g.Node(filepath.Base(dir) + "//.:app")
	assert.True(t, ok)
}
