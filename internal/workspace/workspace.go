// Package workspace loads a minimal declarative target manifest into a
// BuildGraph: a flat YAML list of targets, deliberately not a
// macro/scripting build-file language. It exists at the smallest scope
// that lets cmd/ drive a real graph end to end.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/types"
)

// ManifestFile is the default workspace manifest name, analogous to a
// BUILD file but workspace-wide rather than per-directory: one file
// lists every target since this package intentionally doesn't
// implement per-directory discovery.
const ManifestFile = "FORGE.yml"

// Manifest is the on-disk shape of a workspace manifest.
type Manifest struct {
	Workspace string           `yaml:"workspace"`
	Targets   []TargetManifest `yaml:"targets"`
}

// TargetManifest is one declared build unit.
type TargetManifest struct {
	Path       string            `yaml:"path"`
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Language   string            `yaml:"language"`
	Sources    []string          `yaml:"sources"`
	Deps       []string          `yaml:"deps"`
	Env        map[string]string `yaml:"env"`
	Flags      []string          `yaml:"flags"`
	OutputPath string            `yaml:"output"`
}

// Load reads root/FORGE.yml and assembles a graph.BuildGraph from it,
// resolving relative source paths against root. It does not run the
// language dispatcher's implicit-dependency resolution; callers that
// need implicit deps wired in (cmd/'s dispatcher-backed wiring) should
// use ParseManifest + NewResolver + AssembleGraph directly so the
// dispatcher can mutate each Target's Deps before the graph is
// assembled.
func Load(root string) (*graph.BuildGraph, error) {
	_, targets, err := ParseManifest(root)
	if err != nil {
		return nil, err
	}
	return AssembleGraph(targets)
}

// ParseManifest reads root/FORGE.yml and returns the workspace name and
// its parsed targets, without assembling a graph yet, so implicit
// dependency resolution can run over the targets first.
func ParseManifest(root string) (string, []*types.Target, error) {
	path := filepath.Join(root, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("workspace: reading manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return "", nil, fmt.Errorf("workspace: parsing manifest %s: %w", path, err)
	}
	if manifest.Workspace == "" {
		manifest.Workspace = filepath.Base(root)
	}

	targets := make([]*types.Target, 0, len(manifest.Targets))
	for _, tm := range manifest.Targets {
		target, err := buildTarget(manifest.Workspace, root, tm)
		if err != nil {
			return "", nil, err
		}
		targets = append(targets, target)
	}
	return manifest.Workspace, targets, nil
}

// AssembleGraph builds a graph.BuildGraph from targets, wiring each
// target's explicit dependency list plus whatever implicit deps a
// caller has already added to Target.Deps (e.g. via
// dispatcher.ResolveImplicitDeps) before calling this.
func AssembleGraph(targets []*types.Target) (*graph.BuildGraph, error) {
	g := graph.New()
	for _, target := range targets {
		g.AddTarget(target)
	}
	for _, target := range targets {
		for _, dep := range target.Deps {
			if err := g.AddEdge(target.ID(), dep); err != nil {
				return nil, fmt.Errorf("workspace: %w", err)
			}
		}
	}
	return g, nil
}

// pathResolver implements interfaces.ImportResolver over a workspace's
// parsed targets, indexing each target by its "<workspace>/<path>" key
// (the convention forge's built-in handlers use when emitting import
// paths for same-workspace references) for O(1) average lookup, with a
// longest-suffix fallback so a fully-qualified import path (e.g. one a
// real compiler front-end would report) still resolves against the
// workspace-relative key.
type pathResolver struct {
	index  map[string]string
	suffix []suffixEntry
}

type suffixEntry struct {
	key string
	id  string
}

// NewResolver builds the ImportResolver the dispatcher uses to map an
// AnalyzeImports result onto a target identifier, indexed over targets
// (normally the full set ParseManifest returned for one workspace).
func NewResolver(targets []*types.Target) interfaces.ImportResolver {
	r := &pathResolver{index: make(map[string]string, len(targets))}
	for _, t := range targets {
		key := strings.TrimPrefix(filepath.ToSlash(filepath.Join(t.Workspace, t.Path)), "./")
		r.index[key] = t.ID()
		r.suffix = append(r.suffix, suffixEntry{key: key, id: t.ID()})
	}
	// Longest key first so a more specific path wins a suffix match.
	sort.Slice(r.suffix, func(i, j int) bool { return len(r.suffix[i].key) > len(r.suffix[j].key) })
	return r
}

func (r *pathResolver) Resolve(imp interfaces.Import) (string, bool) {
	path := filepath.ToSlash(imp.Path)
	if id, ok := r.index[path]; ok {
		return id, true
	}
	for _, e := range r.suffix {
		if path == e.key || strings.HasSuffix(path, "/"+e.key) {
			return e.id, true
		}
	}
	return "", false
}

func buildTarget(workspace, root string, tm TargetManifest) (*types.Target, error) {
	if tm.Name == "" {
		return nil, fmt.Errorf("workspace: target in %q is missing a name", tm.Path)
	}
	kind, err := parseKind(tm.Kind)
	if err != nil {
		return nil, fmt.Errorf("workspace: target %s/%s: %w", tm.Path, tm.Name, err)
	}

	sources := make([]string, 0, len(tm.Sources))
	for _, src := range tm.Sources {
		sources = append(sources, filepath.Join(root, tm.Path, src))
	}

	deps := make([]string, 0, len(tm.Deps))
	for _, dep := range tm.Deps {
		deps = append(deps, normalizeLabel(workspace, tm.Path, dep))
	}

	return &types.Target{
		Workspace:  workspace,
		Path:       tm.Path,
		Name:       tm.Name,
		Kind:       kind,
		Language:   tm.Language,
		Sources:    sources,
		Deps:       deps,
		Env:        tm.Env,
		Flags:      tm.Flags,
		OutputPath: tm.OutputPath,
	}, nil
}

// normalizeLabel expands shorthand dependency labels to the canonical
// workspace//path:name form: ":name" refers to a target in the same
// directory, "//path:name" to one in the same workspace. Already-
// qualified labels pass through unchanged.
func normalizeLabel(workspace, path, label string) string {
	switch {
	case strings.HasPrefix(label, ":"):
		return workspace + "//" + path + label
	case strings.HasPrefix(label, "//"):
		return workspace + label
	default:
		return label
	}
}

func parseKind(kind string) (types.TargetKind, error) {
	switch types.TargetKind(kind) {
	case "", types.KindExecutable:
		return types.KindExecutable, nil
	case types.KindLibrary, types.KindTest, types.KindCustom:
		return types.TargetKind(kind), nil
	default:
		return "", fmt.Errorf("unknown target kind %q", kind)
	}
}
