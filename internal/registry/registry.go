// Package registry maps shape variant names to figure constructors.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/rendis/procdesigner/internal/canvas"
	"github.com/rendis/procdesigner/pkg/schema"
)

// legacyPrefix is the prefix the browser designer used for figure class names
// (bpmnTask, bpmnGatewayExclusiveData, ...).
const legacyPrefix = "bpmn"

// Constructor builds a fresh figure with default geometry and no id.
type Constructor func() *canvas.Figure

type entry struct {
	kind schema.ShapeKind
	ctor Constructor
}

// Registry is a thread-safe variant table. It is usually built once at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Default returns a registry with the built-in variants.
func Default() *Registry {
	r := New()
	for _, b := range builtins {
		if err := r.RegisterKind(b.name, b.kind); err != nil {
			panic(err)
		}
	}
	return r
}

var builtins = []struct {
	name string
	kind schema.ShapeKind
}{
	{schema.VariantTask, schema.KindTask},
	{schema.VariantAnnotation, schema.KindAnnotation},
	{schema.VariantSubProcess, schema.KindSubProcess},
	{schema.VariantGatewayExclusiveData, schema.KindGateway},
	{"GatewayParallel", schema.KindGateway},
	{"GatewayInclusive", schema.KindGateway},
	{schema.VariantEventEmptyStart, schema.KindEvent},
	{schema.VariantEventEmptyInter, schema.KindEvent},
	{schema.VariantEventEmptyEnd, schema.KindEvent},
	{"EventMessageStart", schema.KindEvent},
	{"EventTimerStart", schema.KindEvent},
	{"EventTimerInter", schema.KindEvent},
	{"EventMessageEnd", schema.KindEvent},
}

// defaultSize is the geometry a figure gets before saved dimensions are applied.
func defaultSize(kind schema.ShapeKind) (int, int) {
	switch kind {
	case schema.KindTask, schema.KindSubProcess:
		return 165, 40
	case schema.KindGateway:
		return 40, 40
	case schema.KindEvent:
		return 30, 30
	case schema.KindAnnotation:
		return 100, 50
	default:
		return 0, 0
	}
}

// Register adds a constructor under name. Returns a CONFLICT error on duplicates.
func (r *Registry) Register(name string, kind schema.ShapeKind, ctor Constructor) error {
	name = Normalize(name)
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "variant name is empty")
	}
	if ctor == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "variant %q has no constructor", name)
	}
	if !validKind(kind) {
		return schema.NewErrorf(schema.ErrCodeValidation, "variant %q has unknown kind %q", name, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "variant %q already registered", name)
	}
	r.entries[name] = entry{kind: kind, ctor: ctor}
	return nil
}

// RegisterKind adds a variant built by the standard constructor for kind.
func (r *Registry) RegisterKind(name string, kind schema.ShapeKind) error {
	variant := Normalize(name)
	return r.Register(variant, kind, func() *canvas.Figure {
		w, h := defaultSize(kind)
		return &canvas.Figure{Kind: kind, Variant: variant, Width: w, Height: h}
	})
}

// LoadTable registers every entry of a configuration table mapping variant
// name to kind name, e.g. {"GatewayComplex": "gateway"}.
func (r *Registry) LoadTable(table map[string]string) error {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.RegisterKind(name, schema.ShapeKind(strings.ToLower(table[name]))); err != nil {
			return err
		}
	}
	return nil
}

// New builds a figure for the named variant. An unregistered name is an
// UNKNOWN_VARIANT error.
func (r *Registry) New(name string) (*canvas.Figure, error) {
	key := Normalize(name)

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownVariant, "variant %q is not registered", name).
			WithDetails(map[string]any{"variant": name})
	}
	f := e.ctor()
	f.Kind = e.kind
	return f, nil
}

// Kind returns the kind registered for name.
func (r *Registry) Kind(name string) (schema.ShapeKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[Normalize(name)]
	return e.kind, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Kind(name)
	return ok
}

// Names returns all registered variant names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize trims whitespace and the legacy "bpmn" class prefix.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > len(legacyPrefix) && strings.HasPrefix(name, legacyPrefix) {
		name = name[len(legacyPrefix):]
	}
	return name
}

func validKind(kind schema.ShapeKind) bool {
	for _, k := range schema.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
