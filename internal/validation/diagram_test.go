package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/pkg/schema"
)

func flowDiagram() *schema.Diagram {
	return &schema.Diagram{
		Shapes: []schema.Shape{
			{ID: "S1", Kind: schema.KindEvent, Variant: schema.VariantEventEmptyStart},
			{ID: "T1", Kind: schema.KindTask, Variant: schema.VariantTask, Label: "Review", Width: 165, Height: 40},
			{ID: "G1", Kind: schema.KindGateway, Variant: schema.VariantGatewayExclusiveData},
			{ID: "A1", Kind: schema.KindAnnotation, Variant: schema.VariantAnnotation, Label: "note"},
		},
		Routes: []schema.Route{
			{ID: "R1", SourceID: "S1", TargetID: "T1"},
			{ID: "R2", SourceID: "T1", TargetID: "G1"},
			{ID: "R3", SourceID: "G1", TargetID: schema.SentinelTarget},
		},
	}
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func newValidator(t *testing.T, rules ...LintRule) *DiagramValidator {
	t.Helper()
	engines, err := expressions.NewEngines()
	require.NoError(t, err)
	v, err := NewDiagramValidator(engines, rules...)
	require.NoError(t, err)
	return v
}

func TestValidate_CleanDiagram(t *testing.T) {
	res := newValidator(t).Validate(context.Background(), flowDiagram())
	assert.True(t, res.Valid())
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.ToError())
}

func TestValidate_DuplicateAndEmptyIDs(t *testing.T) {
	d := flowDiagram()
	d.Shapes = append(d.Shapes,
		schema.Shape{ID: "T1", Kind: schema.KindTask, Label: "again"},
		schema.Shape{Kind: schema.KindGateway, Variant: "GatewayParallel"},
	)

	res := newValidator(t).Validate(context.Background(), d)
	assert.False(t, res.Valid())
	assert.ElementsMatch(t, []string{IssueDuplicateID, IssueEmptyID}, codes(res.Errors))
	assert.True(t, schema.IsCode(res.ToError(), schema.ErrCodeValidation))
}

func TestValidate_DanglingRoutesAreWarnings(t *testing.T) {
	d := flowDiagram()
	d.Routes = append(d.Routes,
		schema.Route{ID: "R4", SourceID: "GHOST", TargetID: "T1"},
		schema.Route{ID: "R5", SourceID: "T1", TargetID: "NOWHERE"},
		schema.Route{ID: "R6", SourceID: "G1", TargetID: "NOWHERE", Evaluate: true},
	)

	res := newValidator(t).Validate(context.Background(), d)
	assert.True(t, res.Valid())
	assert.Equal(t, []string{IssueDanglingSource, IssueDanglingTarget}, codes(res.Warnings))
	assert.Equal(t, "R4", res.Warnings[0].RouteID)
	assert.Equal(t, "R5", res.Warnings[1].RouteID)
	assert.Empty(t, res.Warnings[0].ShapeID)
}

// legacyDiagram mirrors the designer's historic sample data: saved end events
// in the events group with routes pointing at them.
func legacyDiagram() *schema.Diagram {
	return &schema.Diagram{
		Shapes: []schema.Shape{
			{ID: "T1", Kind: schema.KindTask, Variant: schema.VariantTask, Label: "Task 1", X: 431, Y: 131},
			{ID: "T2", Kind: schema.KindTask, Variant: schema.VariantTask, Label: "Task 2", X: 360, Y: 274},
			{ID: "T3", Kind: schema.KindTask, Variant: schema.VariantTask, Label: "Task 3", X: 540, Y: 274},
			{ID: "G1", Kind: schema.KindGateway, Variant: schema.VariantGatewayExclusiveData, X: 461, Y: 228},
			{ID: "S1", Kind: schema.KindEvent, Variant: schema.VariantEventEmptyStart, X: 480, Y: 95},
			{ID: "E1", Kind: schema.KindEvent, Variant: schema.VariantEventEmptyEnd, X: 411, Y: 347},
			{ID: "E2", Kind: schema.KindEvent, Variant: schema.VariantEventEmptyEnd, X: 590, Y: 347},
		},
		Routes: []schema.Route{
			{ID: "R1", SourceID: "S1", TargetID: "T1"},
			{ID: "R2", SourceID: "T1", TargetID: "G1"},
			{ID: "R3", SourceID: "G1", TargetID: "T2"},
			{ID: "R4", SourceID: "G1", TargetID: "T3"},
			{ID: "R5", SourceID: "T2", TargetID: "E1"},
			{ID: "R6", SourceID: "T3", TargetID: "E2"},
		},
	}
}

func TestValidate_RoutesToSavedEndEvents(t *testing.T) {
	res := newValidator(t).Validate(context.Background(), legacyDiagram())
	assert.True(t, res.Valid())
	require.Equal(t, []string{IssueDanglingTarget, IssueDanglingTarget}, codes(res.Warnings))
	assert.Equal(t, "R5", res.Warnings[0].RouteID)
	assert.Equal(t, "R6", res.Warnings[1].RouteID)
	assert.Contains(t, res.Warnings[0].Message, "end event E1")
}

func TestValidate_RouteFromSavedEndEvent(t *testing.T) {
	d := legacyDiagram()
	d.Routes = append(d.Routes, schema.Route{ID: "R7", SourceID: "E1", TargetID: "T1"})

	res := newValidator(t).Validate(context.Background(), d)
	assert.Equal(t, []string{IssueDanglingTarget, IssueDanglingTarget, IssueDanglingSource}, codes(res.Warnings))
	assert.Equal(t, "R7", res.Warnings[2].RouteID)
}

func TestValidate_TerminatingRoutesAreClean(t *testing.T) {
	d := legacyDiagram()
	d.Routes[4].TargetID = schema.SentinelTarget
	d.Routes[5].TargetID = schema.SentinelTarget

	res := newValidator(t).Validate(context.Background(), d)
	assert.Empty(t, res.Warnings)
}

func TestValidate_Unreachable(t *testing.T) {
	d := flowDiagram()
	d.Shapes = append(d.Shapes, schema.Shape{ID: "T2", Kind: schema.KindTask, Label: "Orphan"})

	res := newValidator(t).Validate(context.Background(), d)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, IssueUnreachable, res.Warnings[0].Code)
	assert.Equal(t, "T2", res.Warnings[0].ShapeID)
}

func TestValidate_NoStartEvent(t *testing.T) {
	d := &schema.Diagram{Shapes: []schema.Shape{{ID: "T1", Kind: schema.KindTask, Label: "x"}}}
	res := newValidator(t).Validate(context.Background(), d)
	assert.Equal(t, []string{IssueNoStart}, codes(res.Warnings))

	empty := newValidator(t).Validate(context.Background(), &schema.Diagram{})
	assert.Empty(t, empty.Warnings)
}

func TestValidate_UnsafeAndMissingLabels(t *testing.T) {
	d := flowDiagram()
	d.Shapes[1].Label = "left|right"
	d.Shapes = append(d.Shapes, schema.Shape{ID: "T3", Kind: schema.KindTask})
	d.Routes = append(d.Routes, schema.Route{ID: "R9", SourceID: "G1", TargetID: "T3"})

	res := newValidator(t).Validate(context.Background(), d)
	assert.ElementsMatch(t, []string{IssueUnsafeLabel, IssueUnlabeledTask}, codes(res.Warnings))
}

func TestValidate_ExprRule(t *testing.T) {
	v := newValidator(t, LintRule{
		Name:       "narrow-task",
		Expression: `shape.width < 200`,
		Message:    "tasks should be at least 200 wide",
		Kinds:      []string{"task"},
	})

	res := v.Validate(context.Background(), flowDiagram())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, IssueLintRule, res.Warnings[0].Code)
	assert.Equal(t, "T1", res.Warnings[0].ShapeID)
	assert.Contains(t, res.Warnings[0].Message, "narrow-task")
}

func TestValidate_CELRuleAsError(t *testing.T) {
	v := newValidator(t, LintRule{
		Name:       "gateway-fan-out",
		Lang:       "cel",
		Expression: `shape.kind == "gateway" && shape.outgoing < 2`,
		Severity:   "error",
	})

	res := v.Validate(context.Background(), flowDiagram())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "G1", res.Errors[0].ShapeID)
	assert.Contains(t, res.Errors[0].Message, "gateway-fan-out matched")
}

func TestValidate_RuleRuntimeFailureIsWarning(t *testing.T) {
	v := newValidator(t, LintRule{Name: "broken", Expression: `shape.label + 1 > 0`, Kinds: []string{"task"}})
	res := v.Validate(context.Background(), flowDiagram())
	assert.True(t, res.Valid())
	assert.Equal(t, []string{IssueRuleFailed}, codes(res.Warnings))
}

func TestNewDiagramValidator_BadRules(t *testing.T) {
	engines, err := expressions.NewEngines()
	require.NoError(t, err)

	tests := []struct {
		name string
		rule LintRule
	}{
		{"missing name", LintRule{Expression: "true"}},
		{"missing expression", LintRule{Name: "x"}},
		{"jq not allowed", LintRule{Name: "x", Expression: ".", Lang: "jq"}},
		{"unknown severity", LintRule{Name: "x", Expression: "true", Severity: "fatal"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDiagramValidator(engines, tc.rule)
			assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
		})
	}
}

func TestNewDiagramValidator_NoRulesNoEngines(t *testing.T) {
	v, err := NewDiagramValidator(nil)
	require.NoError(t, err)
	assert.True(t, v.Validate(context.Background(), flowDiagram()).Valid())
}
