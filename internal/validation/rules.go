package validation

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/pkg/schema"
)

// LintRule is a configured per-shape check. The expression sees two
// variables: shape (id, kind, variant, label, x, y, width, height, boundary,
// incoming, outgoing) and diagram (shapes, routes, process_id). When it
// evaluates to true the rule reports Message at Severity.
type LintRule struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Lang       string   `json:"lang,omitempty"`     // expr (default) or cel
	Severity   string   `json:"severity,omitempty"` // warning (default) or error
	Message    string   `json:"message,omitempty"`
	Kinds      []string `json:"kinds,omitempty"` // empty means every kind
}

type compiledRule struct {
	LintRule
	engine   expressions.Engine
	severity schema.ValidationSeverity
	kinds    map[schema.ShapeKind]bool
}

func compileRules(engines expressions.Engines, rules []LintRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" || r.Expression == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "lint rule needs a name and an expression")
		}
		if r.Lang != "" && r.Lang != "expr" && r.Lang != "cel" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "lint rule %q: unsupported lang %q", r.Name, r.Lang)
		}
		e, ok := engines.Get(r.Lang)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "lint rule %q: engine %q unavailable", r.Name, r.Lang)
		}

		cr := compiledRule{LintRule: r, engine: e, severity: schema.SeverityWarning}
		switch r.Severity {
		case "", string(schema.SeverityWarning):
		case string(schema.SeverityError):
			cr.severity = schema.SeverityError
		default:
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "lint rule %q: unknown severity %q", r.Name, r.Severity)
		}
		if len(r.Kinds) > 0 {
			cr.kinds = make(map[schema.ShapeKind]bool, len(r.Kinds))
			for _, k := range r.Kinds {
				cr.kinds[schema.ShapeKind(k)] = true
			}
		}
		if cr.Message == "" {
			cr.Message = fmt.Sprintf("lint rule %s matched", r.Name)
		}
		out = append(out, cr)
	}
	return out, nil
}

func (r *compiledRule) applies(kind schema.ShapeKind) bool {
	return r.kinds == nil || r.kinds[kind]
}

// eval runs the rule. A non-boolean result is read with cast, so "true" and 1
// also match.
func (r *compiledRule) eval(ctx context.Context, data map[string]any) (bool, error) {
	out, err := r.engine.Evaluate(ctx, r.Expression, data)
	if err != nil {
		return false, err
	}
	if b, ok := out.(bool); ok {
		return b, nil
	}
	return cast.ToBoolE(out)
}
