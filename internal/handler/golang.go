package handler

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/forgebuild/forge/internal/hasher"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// GoHandler builds Go packages via `go build`/`go test`, resolving
// implicit dependencies by parsing each source file's import block
// with go/parser rather than guessing with a regexp.
type GoHandler struct {
	hasher *hasher.Hasher
	goBin  string
}

// NewGoHandler returns a GoHandler that invokes the `go` binary on PATH.
func NewGoHandler(h *hasher.Hasher) *GoHandler {
	if h == nil {
		h = hasher.New(0)
	}
	return &GoHandler{hasher: h, goBin: "go"}
}

// Build runs `go build` (or `go test -c` for Test targets) for the
// target's package directory.
func (h *GoHandler) Build(ctx context.Context, target *types.Target, workspaceRoot string) (string, error) {
	dir := filepath.Join(workspaceRoot, target.Path)
	outPath := target.OutputPath
	if outPath == "" {
		outPath = filepath.Join("bin", target.Name)
	}
	outPath = filepath.Join(workspaceRoot, outPath)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("go handler: preparing output dir: %w", err)
	}

	args := []string{"build", "-o", outPath}
	if target.Kind == types.KindTest {
		args = []string{"test", "-c", "-o", outPath}
	}
	args = append(args, target.Flags...)
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, h.goBin, args...)
	cmd.Dir = dir
	cmd.Env = mergedEnv(target.Env)
	gracefulTermination(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("go handler: target %s timed out: %w", target.ID(), ctx.Err())
		}
		return "", fmt.Errorf("go handler: target %s failed: %w\noutput:\n%s", target.ID(), err, output)
	}

	return h.hasher.ContentHash(outPath)
}

// AnalyzeImports parses each source file's import declarations with
// go/parser in ImportsOnly mode (cheap: no full type-check) and returns
// every imported path as an Import for the dispatcher's resolver.
func (h *GoHandler) AnalyzeImports(sources []string) ([]interfaces.Import, error) {
	var imports []interfaces.Import
	fset := token.NewFileSet()

	for _, src := range sources {
		file, err := parser.ParseFile(fset, src, nil, parser.ImportsOnly)
		if err != nil {
			return nil, fmt.Errorf("go handler: parsing imports in %s: %w", src, err)
		}
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			imports = append(imports, interfaces.Import{Path: path, FromFile: src})
		}
	}
	return imports, nil
}

// Outputs returns the single binary path go build would have produced.
func (h *GoHandler) Outputs(target *types.Target, workspaceRoot string) ([]string, error) {
	outPath := target.OutputPath
	if outPath == "" {
		outPath = filepath.Join("bin", target.Name)
	}
	return []string{filepath.Join(workspaceRoot, outPath)}, nil
}

// Clean removes the built binary.
func (h *GoHandler) Clean(target *types.Target, workspaceRoot string) error {
	outs, err := h.Outputs(target, workspaceRoot)
	if err != nil {
		return err
	}
	for _, p := range outs {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
