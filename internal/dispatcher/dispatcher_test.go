package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/errors"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/logging"
	"github.com/forgebuild/forge/internal/types"
)

type stubHandler struct {
	imports []interfaces.Import
}

func (s stubHandler) Build(ctx context.Context, target *types.Target, workspaceRoot string) (string, error) {
	return "hash", nil
}
func (s stubHandler) AnalyzeImports(sources []string) ([]interfaces.Import, error) {
	return s.imports, nil
}
func (s stubHandler) Outputs(target *types.Target, workspaceRoot string) ([]string, error) {
	return nil, nil
}
func (s stubHandler) Clean(target *types.Target, workspaceRoot string) error { return nil }

type stubResolver struct {
	index map[string]string
}

func (r stubResolver) Resolve(imp interfaces.Import) (string, bool) {
	id, ok := r.index[imp.Path]
	return id, ok
}

func TestDispatcher_HandlerNotFound(t *testing.T) {
	d := New(nil, logging.Noop())
	_, err := d.Handler("rust")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeHandlerNotFound))
}

func TestDispatcher_RegisterAndLanguages(t *testing.T) {
	d := New(nil, logging.Noop())
	d.Register("go", stubHandler{})
	d.Register("shell", stubHandler{})

	assert.Equal(t, []string{"go", "shell"}, d.Languages())
}

func TestDispatcher_ResolveImplicitDeps_AddsResolvedImports(t *testing.T) {
	resolver := stubResolver{index: map[string]string{
		"ws/pkg/b": "ws//pkg/b:b",
	}}
	d := New(resolver, logging.Noop())
	d.Register("go", stubHandler{imports: []interfaces.Import{{Path: "ws/pkg/b"}, {Path: "unresolved/pkg"}}})

	target := &types.Target{Workspace: "ws", Path: "pkg/a", Name: "a", Language: "go"}
	require.NoError(t, d.ResolveImplicitDeps(target))

	assert.Contains(t, target.Deps, "ws//pkg/b:b")
	assert.Len(t, target.Deps, 1)
}

func TestDispatcher_SetResolver_AppliesToSubsequentResolves(t *testing.T) {
	d := New(nil, logging.Noop())
	d.Register("go", stubHandler{imports: []interfaces.Import{{Path: "ws/pkg/b"}}})

	target := &types.Target{Workspace: "ws", Path: "pkg/a", Name: "a", Language: "go"}
	require.NoError(t, d.ResolveImplicitDeps(target))
	assert.Empty(t, target.Deps, "no resolver installed yet: import should be skipped, not error")

	d.SetResolver(stubResolver{index: map[string]string{"ws/pkg/b": "ws//pkg/b:b"}})
	require.NoError(t, d.ResolveImplicitDeps(target))
	assert.Contains(t, target.Deps, "ws//pkg/b:b")
}

func TestDispatcher_ResolveImplicitDeps_UnknownLanguage(t *testing.T) {
	d := New(nil, logging.Noop())
	target := &types.Target{Workspace: "ws", Path: "pkg", Name: "a", Language: "rust"}
	err := d.ResolveImplicitDeps(target)
	require.Error(t, err)
}
