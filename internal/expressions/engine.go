package expressions

import "context"

// Engine evaluates an expression against a data map.
// CEL and Expr back diagram lint rules; GoJQ backs diagram inspection.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Engines indexes engines by name.
type Engines map[string]Engine

// NewEngines builds the standard engine set: expr, cel and jq.
func NewEngines() (Engines, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	engines := Engines{}
	for _, e := range []Engine{NewExprEngine(), celEngine, NewGoJQEngine()} {
		engines[e.Name()] = e
	}
	return engines, nil
}

// Get returns the named engine. An empty name selects expr.
func (es Engines) Get(name string) (Engine, bool) {
	if name == "" {
		name = "expr"
	}
	e, ok := es[name]
	return e, ok
}
