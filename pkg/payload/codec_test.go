package payload

import (
	"encoding/json"
	"testing"

	"github.com/rendis/procdesigner/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDiagram() *schema.Diagram {
	return &schema.Diagram{
		Shapes: []schema.Shape{
			{ID: "S1", Kind: schema.KindEvent, Variant: schema.VariantEventEmptyStart, X: 480, Y: 95, Width: 30, Height: 30},
			{ID: "T1", Kind: schema.KindTask, Variant: schema.VariantTask, X: 431, Y: 131, Width: 165, Height: 40, Label: "Task 1"},
			{ID: "T2", Kind: schema.KindTask, Variant: schema.VariantTask, X: 360, Y: 274, Width: 165, Height: 40, Label: "Review: final", Boundary: true},
			{ID: "G1", Kind: schema.KindGateway, Variant: schema.VariantGatewayExclusiveData, X: 461, Y: 228, Width: 40, Height: 40},
			{ID: "A1", Kind: schema.KindAnnotation, Variant: schema.VariantAnnotation, X: 100, Y: 50, Width: 120, Height: 60, Label: "Check A & B"},
			{ID: "P1", Kind: schema.KindSubProcess, Variant: schema.VariantSubProcess, X: 600, Y: 300, Width: 165, Height: 40, Label: "Billing"},
		},
		Routes: []schema.Route{
			{ID: "R1", SourceID: "S1", TargetID: "T1"},
			{ID: "R2", SourceID: "T1", TargetID: "G1"},
			{ID: "R3", SourceID: "G1", TargetID: "T2"},
			{ID: "R4", SourceID: "T2", TargetID: schema.SentinelTarget},
			{ID: "R5", SourceID: "G1", TargetID: "P1", Evaluate: true},
		},
	}
}

func TestDecode_TaskExample(t *testing.T) {
	g, err := Decode(`tasks:[["T1","Task A",10,20,80,40,"NORMAL"]]|routes:[]`)
	require.NoError(t, err)

	require.Len(t, g.Tasks, 1)
	assert.Equal(t, TaskRecord{ID: "T1", Label: "Task A", X: 10, Y: 20, Width: 80, Height: 40, Marker: "NORMAL"}, g.Tasks[0])
	assert.Empty(t, g.Routes)
	assert.NotNil(t, g.Routes)
	assert.Equal(t, VersionLegacy, g.Version)
}

func TestEncode_LegacyLayout(t *testing.T) {
	out, err := Encode(sampleDiagram())
	require.NoError(t, err)

	want := `tasks:[["T1","Task 1",431,131,165,40,"NORMAL"],["T2","Review: final",360,274,165,40,"TIMER"]]` +
		`|gateways:[["G1","GatewayExclusiveData",461,228,40,40]]` +
		`|events:[["S1","EventEmptyStart",480,95,30,30]]` +
		`|annotations:[["A1","Annotation",100,50,120,60,"Check A & B"]]` +
		`|subprocess:[["P1","Billing",600,300,165,40,"SUBPROCESS"]]` +
		`|routes:[["R1","S1","T1"],["R2","T1","G1"],["R3","G1","T2"],["R4","T2","-1"],["R5","G1","P1","","","EVALUATE"]]`
	assert.Equal(t, want, out)
}

func TestEncode_EmptyDiagramKeepsRoutes(t *testing.T) {
	out, err := Encode(&schema.Diagram{})
	require.NoError(t, err)
	assert.Equal(t, "routes:[]", out)
}

func TestEncode_OmitsEmptyShapeGroups(t *testing.T) {
	d := &schema.Diagram{Shapes: []schema.Shape{
		{ID: "T1", Kind: schema.KindTask, Label: "Task A", X: 10, Y: 20, Width: 80, Height: 40},
	}}
	out, err := Encode(d)
	require.NoError(t, err)
	assert.Equal(t, `tasks:[["T1","Task A",10,20,80,40,"NORMAL"]]|routes:[]`, out)
}

func TestRoundTrip(t *testing.T) {
	for _, version := range []int{VersionLegacy, VersionDocument} {
		t.Run(map[int]string{1: "v1", 2: "v2"}[version], func(t *testing.T) {
			d := sampleDiagram()
			out, err := Encode(d, WithVersion(version))
			require.NoError(t, err)

			g, err := Decode(out)
			require.NoError(t, err)
			assert.Equal(t, version, g.Version)

			back := g.Diagram()
			assert.ElementsMatch(t, d.Shapes, back.Shapes)
			assert.Equal(t, d.Routes, back.Routes)
		})
	}
}

func TestEncode_PipeInLabel(t *testing.T) {
	d := &schema.Diagram{Shapes: []schema.Shape{
		{ID: "T1", Kind: schema.KindTask, Label: "left|right"},
	}}

	_, err := Encode(d)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeUnsafeDelimiter))

	out, err := Encode(d, WithVersion(VersionDocument))
	require.NoError(t, err)
	g, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "left|right", g.Tasks[0].Label)
}

func TestEncode_UnsupportedVersion(t *testing.T) {
	_, err := Encode(&schema.Diagram{}, WithVersion(9))
	assert.True(t, schema.IsCode(err, schema.ErrCodeFormat))
}

func TestDecode_ColonInLabel(t *testing.T) {
	g, err := Decode(`tasks:[["T1","Step: one",1,2,3,4,"NORMAL"]]|routes:[]`)
	require.NoError(t, err)
	assert.Equal(t, "Step: one", g.Tasks[0].Label)
}

func TestDecode_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n"} {
		g, err := Decode(in)
		require.NoError(t, err)
		assert.Zero(t, g.ShapeCount())
		assert.Empty(t, g.Routes)
	}
}

func TestDecode_UnknownGroupIgnored(t *testing.T) {
	g, err := Decode(`lanes:[["L1"]]|tasks:[["T1","A",1,2,3,4,"NORMAL"]]|routes:[]`)
	require.NoError(t, err)
	assert.Len(t, g.Tasks, 1)
	assert.Equal(t, []string{"lanes"}, g.Ignored)
}

func TestDecode_FormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing separator", `tasks[["T1"]]|routes:[]`},
		{"invalid json", `tasks:[["T1",]|routes:[]`},
		{"not an array", `tasks:{"id":"T1"}|routes:[]`},
		{"short record", `tasks:[["T1","A"]]|routes:[]`},
		{"bad coordinate", `gateways:[["G1","GatewayExclusiveData","left",2]]`},
		{"huge coordinate", `tasks:[["T1","A",1e30,2]]`},
		{"huge coordinate string", `gateways:[["G1","GatewayExclusiveData","-1e30",2]]`},
		{"nan coordinate", `events:[["E1","EventEmptyStart","NaN",2]]`},
		{"infinite coordinate", `events:[["E1","EventEmptyStart",1,"+Inf"]]`},
		{"empty variant", `events:[["E1","",1,2]]`},
		{"short route", `routes:[["R1","A"]]`},
		{"bad process", `process:{nope|routes:[]`},
		{"bad document", `{"version":2,"tasks":"oops","routes":[]}`},
		{"document without routes", `{"version":2}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.payload)
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeFormat), "got %v", err)
		})
	}
}

func TestDecode_LegacyNumericStrings(t *testing.T) {
	g, err := Decode(`tasks:[["4043621294c5bda0d9625f4067933182","Task 1","431","131"]]` +
		`|gateways:[["6934720824c5be48364b533001453464","GatewayExclusiveData","461","228"]]` +
		`|events:[["2081943344c5bdbb38a7ae9016052622","EventEmptyStart","480","095"]]`)
	require.NoError(t, err)

	assert.Equal(t, 431, g.Tasks[0].X)
	assert.Equal(t, 131, g.Tasks[0].Y)
	assert.Zero(t, g.Tasks[0].Width)
	assert.Equal(t, "", g.Tasks[0].Marker)
	assert.Equal(t, 461, g.Gateways[0].X)
	assert.Equal(t, 95, g.Events[0].Y)
}

func TestDecode_EvaluateMarker(t *testing.T) {
	g, err := Decode(`routes:[["R1","G1","-1"],["R2","G1","T9","x","y","EVALUATE"],["R3","G1","T9","","","OTHER"]]`)
	require.NoError(t, err)
	require.Len(t, g.Routes, 3)
	assert.False(t, g.Routes[0].Evaluate)
	assert.True(t, g.Routes[1].Evaluate)
	assert.False(t, g.Routes[2].Evaluate)
}

func TestDecode_LegacyAnnotationLabel(t *testing.T) {
	g, err := Decode(`annotations:[["A1","Remember the invoice",10,10,100,50]]`)
	require.NoError(t, err)
	assert.Equal(t, "Remember the invoice", g.Annotations[0].Label)
	assert.Equal(t, schema.VariantAnnotation, g.Annotations[0].Variant)
}

func TestDecode_ProcessGroupPassThrough(t *testing.T) {
	g, err := Decode(`process:{"name":"Orders","width":2000}|routes:[]`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Orders","width":2000}`, string(g.Process))

	out, err := EncodeGroups(g, VersionLegacy)
	require.NoError(t, err)
	assert.Equal(t, `process:{"name":"Orders","width":2000}|routes:[]`, out)
}

func TestDecode_DocumentIgnoredKeys(t *testing.T) {
	g, err := Decode(`{"version":2,"lanes":[],"tasks":[["T1","A",1,2,3,4,"NORMAL"]],"routes":[]}`)
	require.NoError(t, err)
	assert.Equal(t, VersionDocument, g.Version)
	assert.Equal(t, []string{"lanes"}, g.Ignored)
	assert.Len(t, g.Tasks, 1)
}

func TestEncode_DocumentShape(t *testing.T) {
	out, err := Encode(sampleDiagram(), WithVersion(VersionDocument))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.JSONEq(t, `2`, string(doc["version"]))
	assert.JSONEq(t, `[["G1","GatewayExclusiveData",461,228,40,40]]`, string(doc["gateways"]))
	assert.Contains(t, out, `"Check A & B"`)
}

func TestAssemble(t *testing.T) {
	out := Assemble(map[string]string{
		GroupRoutes: `[["R1","T1","-1"]]`,
		GroupTasks:  `[["T1","Task A",10,20,80,40,"NORMAL"]]`,
		GroupEvents: "  ",
	})
	assert.Equal(t, `tasks:[["T1","Task A",10,20,80,40,"NORMAL"]]|routes:[["R1","T1","-1"]]`, out)

	g, err := Decode(out)
	require.NoError(t, err)
	assert.Len(t, g.Tasks, 1)
	assert.Len(t, g.Routes, 1)

	assert.Equal(t, "routes:[]", Assemble(nil))
}
