package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdesigner/pkg/schema"
)

func TestRenderASCII(t *testing.T) {
	m := Build(orderDiagram())
	out := RenderASCII(m)

	assert.Contains(t, out, "=== Process orders ===")
	assert.Contains(t, out, "Check order")
	assert.Contains(t, out, "<GatewayExclusiveData>")
	assert.Contains(t, out, "Ship @timer")
	assert.Contains(t, out, "[+] Billing")
	assert.Contains(t, out, "# Only paid orders")
	assert.Contains(t, out, "R5: T2 ─→ End")
	assert.Contains(t, out, "R6: P1 ─→ End [evaluate]")
	assert.Contains(t, out, "▼")
}

func TestRenderASCII_IssueTagsAndDropped(t *testing.T) {
	d := orderDiagram()
	d.Routes = append(d.Routes, schema.Route{ID: "R9", SourceID: "GHOST", TargetID: "T1"})
	m := Build(d)
	res := &schema.ValidationResult{}
	res.ShapeIssue(schema.SeverityWarning, "T1", "X", "w")
	Annotate(m, res)

	out := RenderASCII(m)
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "(dropped routes: R9)")
}

func TestRenderASCII_Empty(t *testing.T) {
	assert.Equal(t, "", RenderASCII(Build(&schema.Diagram{})))
}

func TestRenderMermaid(t *testing.T) {
	m := Build(orderDiagram())
	res := &schema.ValidationResult{}
	res.ShapeIssue(schema.SeverityError, "G1", "X", "bad")
	Annotate(m, res)

	out := RenderMermaid(m)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "%% Process orders")
	assert.Contains(t, out, `S1(("EventEmptyStart"))`)
	assert.Contains(t, out, `T1["Check order"]`)
	assert.Contains(t, out, `G1{"GatewayExclusiveData"}`)
	assert.Contains(t, out, `P1[["Billing"]]`)
	assert.Contains(t, out, `A1>"Only paid orders"]`)
	assert.Contains(t, out, `end_R5((("End")))`)
	assert.Contains(t, out, "S1 --> T1")
	assert.Contains(t, out, "P1 -.->|evaluate| end_R6")
	assert.Contains(t, out, "class A1 note")
	assert.Contains(t, out, "class G1 error")
}

func TestMermaidSafeIDAndLabel(t *testing.T) {
	assert.Equal(t, "a_b_c_d", mermaidSafeID("a.b-c d"))
	assert.Equal(t, "say 'hi'", mermaidEscapeLabel(`say "hi"`))
}

func TestRenderMermaidForCLI(t *testing.T) {
	d := &schema.Diagram{
		Shapes: []schema.Shape{
			{ID: "T1", Kind: schema.KindTask, Label: "Same name"},
			{ID: "T2", Kind: schema.KindTask, Label: "Same name"},
			{ID: "T3", Kind: schema.KindTask, Label: "Alone"},
		},
		Routes: []schema.Route{{ID: "R1", SourceID: "T1", TargetID: "T2"}},
	}
	out := RenderMermaidForCLI(Build(d))
	assert.Contains(t, out, "Same-name --> Same-name-T2")
	assert.Contains(t, out, "    Alone\n")
	assert.NotContains(t, out, "[")
}

func TestRenderASCIIAuto_FallsBack(t *testing.T) {
	m := Build(orderDiagram())
	out := RenderASCIIAuto(context.Background(), m, "/nonexistent/mermaid-ascii")
	assert.Equal(t, RenderASCII(m), out)
}

func TestRenderImage(t *testing.T) {
	png, err := RenderImage(context.Background(), Build(orderDiagram()))
	require.NoError(t, err)
	require.True(t, len(png) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatASCII},
		{"ascii", FormatASCII},
		{" Mermaid ", FormatMermaid},
		{"image", FormatImage},
		{"png", FormatImage},
	}
	for _, tc := range tests {
		got, err := ParseFormat(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseFormat("svg")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRender_Mermaid(t *testing.T) {
	out, err := Render(context.Background(), Build(orderDiagram()), FormatMermaid, "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "graph TD")
	assert.Equal(t, "text/plain; charset=utf-8", FormatMermaid.ContentType())
	assert.Equal(t, "image/png", FormatImage.ContentType())
}
