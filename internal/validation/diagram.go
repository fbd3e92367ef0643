package validation

import (
	"context"
	"strings"

	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Issue codes reported by DiagramValidator.
const (
	IssueDuplicateID    = "DUPLICATE_ID"
	IssueEmptyID        = "EMPTY_ID"
	IssueDanglingSource = "DANGLING_SOURCE"
	IssueDanglingTarget = "DANGLING_TARGET"
	IssueNoStart        = "NO_START_EVENT"
	IssueUnreachable    = "UNREACHABLE"
	IssueUnsafeLabel    = "UNSAFE_LABEL"
	IssueUnlabeledTask  = "UNLABELED_TASK"
	IssueLintRule       = "LINT_RULE"
	IssueRuleFailed     = "RULE_FAILED"
)

// DiagramValidator checks a decoded diagram for structural problems. Routes
// that would be dropped on load are reported as warnings, never errors.
type DiagramValidator struct {
	rules []compiledRule
}

// NewDiagramValidator compiles the lint rules against engines. engines may be
// nil when there are no rules.
func NewDiagramValidator(engines expressions.Engines, rules ...LintRule) (*DiagramValidator, error) {
	compiled, err := compileRules(engines, rules)
	if err != nil {
		return nil, err
	}
	return &DiagramValidator{rules: compiled}, nil
}

// Validate runs the structural checks and then every lint rule.
func (v *DiagramValidator) Validate(ctx context.Context, d *schema.Diagram) *schema.ValidationResult {
	res := &schema.ValidationResult{}

	// loaded counts the shapes a designer load would place on the canvas.
	// Saved end events are skipped on load, so routes cannot resolve to them.
	loaded := make(map[string]int, len(d.Shapes))
	seen := make(map[string]bool, len(d.Shapes))
	for _, s := range d.Shapes {
		switch {
		case s.ID == "":
			res.DiagramIssue(schema.SeverityError, IssueEmptyID, "a "+string(s.Kind)+" has no id")
			continue
		case seen[s.ID]:
			res.ShapeIssue(schema.SeverityError, s.ID, IssueDuplicateID, "shape id "+s.ID+" is used more than once")
		}
		seen[s.ID] = true
		if !s.IsEndEvent() {
			loaded[s.ID]++
		}

		if strings.Contains(s.ID, "|") || strings.Contains(s.Label, "|") {
			res.ShapeIssue(schema.SeverityWarning, s.ID, IssueUnsafeLabel, "contains \"|\" and can only be saved in format version 2")
		}
		if s.Kind == schema.KindTask && strings.TrimSpace(s.Label) == "" {
			res.ShapeIssue(schema.SeverityWarning, s.ID, IssueUnlabeledTask, "task has no label")
		}
	}

	v.checkRoutes(d, loaded, seen, res)
	v.checkReachability(d, res)
	v.runRules(ctx, d, res)
	return res
}

func (v *DiagramValidator) checkRoutes(d *schema.Diagram, loaded map[string]int, seen map[string]bool, res *schema.ValidationResult) {
	missing := func(id string) string {
		if seen[id] {
			return "end event " + id + " is rebuilt from terminating routes and not loaded"
		}
		return id + " does not exist"
	}
	for _, r := range d.Routes {
		if loaded[r.SourceID] == 0 {
			res.RouteIssue(schema.SeverityWarning, r.ID, IssueDanglingSource, "source "+missing(r.SourceID)+"; the route is dropped on load")
			continue
		}
		if !r.Terminates() && loaded[r.TargetID] == 0 {
			res.RouteIssue(schema.SeverityWarning, r.ID, IssueDanglingTarget, "target "+missing(r.TargetID)+"; the route is dropped on load")
		}
		if strings.Contains(r.ID, "|") {
			res.RouteIssue(schema.SeverityWarning, r.ID, IssueUnsafeLabel, "route id contains \"|\" and can only be saved in format version 2")
		}
	}
}

// checkReachability walks routes from every start event. Annotations are
// never connected and saved end events are never loaded, so both are left out.
func (v *DiagramValidator) checkReachability(d *schema.Diagram, res *schema.ValidationResult) {
	next := make(map[string][]string)
	for _, r := range d.Routes {
		if !r.Terminates() {
			next[r.SourceID] = append(next[r.SourceID], r.TargetID)
		}
	}

	var queue []string
	seen := make(map[string]bool)
	for _, s := range d.Shapes {
		if s.IsStartEvent() && !seen[s.ID] {
			seen[s.ID] = true
			queue = append(queue, s.ID)
		}
	}
	if len(queue) == 0 {
		if len(d.Shapes) > 0 {
			res.DiagramIssue(schema.SeverityWarning, IssueNoStart, "diagram has no start event")
		}
		return
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range next[id] {
			if !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}

	for _, s := range d.Shapes {
		if s.Kind == schema.KindAnnotation || s.IsEndEvent() || s.ID == "" || seen[s.ID] {
			continue
		}
		res.ShapeIssue(schema.SeverityWarning, s.ID, IssueUnreachable, "not reachable from any start event")
	}
}

func (v *DiagramValidator) runRules(ctx context.Context, d *schema.Diagram, res *schema.ValidationResult) {
	if len(v.rules) == 0 {
		return
	}
	in := make(map[string]int)
	out := make(map[string]int)
	for _, r := range d.Routes {
		out[r.SourceID]++
		in[r.TargetID]++
	}
	diagram := map[string]any{
		"shapes":     len(d.Shapes),
		"routes":     len(d.Routes),
		"process_id": d.ProcessID,
	}

	for _, s := range d.Shapes {
		data := map[string]any{
			"shape": map[string]any{
				"id":       s.ID,
				"kind":     string(s.Kind),
				"variant":  s.Variant,
				"label":    s.Label,
				"x":        s.X,
				"y":        s.Y,
				"width":    s.Width,
				"height":   s.Height,
				"boundary": s.Boundary,
				"incoming": in[s.ID],
				"outgoing": out[s.ID],
			},
			"diagram": diagram,
		}
		for i := range v.rules {
			rule := &v.rules[i]
			if !rule.applies(s.Kind) {
				continue
			}
			hit, err := rule.eval(ctx, data)
			if err != nil {
				res.ShapeIssue(schema.SeverityWarning, s.ID, IssueRuleFailed, rule.Name+": "+err.Error())
				continue
			}
			if hit {
				res.ShapeIssue(rule.severity, s.ID, IssueLintRule, rule.Name+": "+rule.Message)
			}
		}
	}
}
