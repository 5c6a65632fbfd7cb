// Package dispatcher routes build targets to LanguageHandler
// implementations and resolves each target's implicit dependencies
// from import analysis before the build graph is assembled.
package dispatcher

import (
	"context"
	"sort"
	"sync"

	"github.com/forgebuild/forge/internal/errors"
	"github.com/forgebuild/forge/internal/interfaces"
	"github.com/forgebuild/forge/internal/logging"
	"github.com/forgebuild/forge/internal/types"
)

// Dispatcher holds the language_tag -> LanguageHandler registry and
// resolves implicit dependencies via each handler's AnalyzeImports.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]interfaces.LanguageHandler
	resolver interfaces.ImportResolver
	log      logging.Logger
}

// New returns a Dispatcher with no registered handlers. resolver may be
// nil; unresolved imports are then simply skipped rather than added as
// implicit deps.
func New(resolver interfaces.ImportResolver, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	return &Dispatcher{
		handlers: make(map[string]interfaces.LanguageHandler),
		resolver: resolver,
		log:      log.WithComponent("dispatcher"),
	}
}

// Register binds language to handler, replacing any prior registration.
func (d *Dispatcher) Register(language string, handler interfaces.LanguageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[language] = handler
}

// SetResolver installs the ImportResolver used by ResolveImplicitDeps.
// Separated from New so callers can build the resolver from the full
// set of parsed workspace targets (e.g. workspace.NewResolver) after
// the dispatcher itself has been constructed.
func (d *Dispatcher) SetResolver(resolver interfaces.ImportResolver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolver = resolver
}

// Handler returns the handler registered for language.
func (d *Dispatcher) Handler(language string) (interfaces.LanguageHandler, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[language]
	if !ok {
		return nil, errors.NewHandlerNotFound("", language)
	}
	return h, nil
}

// Languages returns the registered language tags, sorted.
func (d *Dispatcher) Languages() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for lang := range d.handlers {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// ResolveImplicitDeps runs the target's handler's AnalyzeImports and adds
// every import the resolver can map to a target identifier as an
// implicit dependency, skipping (and logging) anything unresolved
// rather than failing the whole target: an unresolved import may still
// build fine.
func (d *Dispatcher) ResolveImplicitDeps(target *types.Target) error {
	handler, err := d.Handler(target.Language)
	if err != nil {
		return errors.WrapBuild(err, "HANDLER_NOT_FOUND", "no handler for language "+target.Language, target.ID())
	}

	imports, err := handler.AnalyzeImports(target.Sources)
	if err != nil {
		return errors.WrapBuild(err, "IMPORT_ANALYSIS_FAILED", "failed to analyze imports", target.ID())
	}

	d.mu.RLock()
	resolver := d.resolver
	d.mu.RUnlock()
	if resolver == nil {
		return nil
	}

	seen := make(map[string]bool, len(target.Deps))
	for _, dep := range target.Deps {
		seen[dep] = true
	}

	for _, imp := range imports {
		depID, ok := resolver.Resolve(imp)
		if !ok {
			d.log.Warn(context.Background(), nil, "unresolved import", "target", target.ID(), "import", imp.Path)
			continue
		}
		if depID == target.ID() || seen[depID] {
			continue
		}
		target.Deps = append(target.Deps, depID)
		seen[depID] = true
	}
	return nil
}
