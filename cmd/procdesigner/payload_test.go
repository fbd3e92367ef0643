package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderPayload = `tasks:[["T1","Check order",10,20,165,40,"NORMAL"]]` +
	`|events:[["S1","EventEmptyStart",0,0,30,30]]` +
	`|routes:[["R1","S1","T1"],["R2","T1","-1"]]`

// run executes the root command against an isolated settings file and database.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PROCDESIGNER_DB_PATH", filepath.Join(dir, "db", "pd.db"))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--settings", filepath.Join(dir, "settings.json")}, args...))
	err := root.Execute()
	return out.String(), err
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDecodeCmd(t *testing.T) {
	out, err := run(t, "", "decode", writePayload(t, orderPayload))
	require.NoError(t, err)
	assert.Contains(t, out, `"version": 1`)
	assert.Contains(t, out, `"label": "Check order"`)
	assert.Contains(t, out, `"target_id": "-1"`)
}

func TestDecodeCmd_Live(t *testing.T) {
	out, err := run(t, orderPayload, "decode", "--live", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"synthesized_ends": 1`)
	assert.Contains(t, out, `"task_no"`)
}

func TestDecodeCmd_FormatError(t *testing.T) {
	_, err := run(t, `tasks:[["T1",]`, "decode")
	assert.Error(t, err)
}

func TestEncodeCmd_RoundTrip(t *testing.T) {
	decoded, err := run(t, orderPayload, "decode")
	require.NoError(t, err)

	// decode prints a wrapper object; encode takes the bare diagram.
	start := strings.Index(decoded, `"diagram": `) + len(`"diagram": `)
	end := strings.LastIndex(decoded, `,
  "ignored"`)
	require.Greater(t, end, start)

	out, err := run(t, decoded[start:end], "encode")
	require.NoError(t, err)
	assert.Equal(t, orderPayload, strings.TrimSpace(out))
}

func TestEncodeCmd_BadJSON(t *testing.T) {
	_, err := run(t, `{"shapes":`, "encode")
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, `tasks:[["T1","",10,20,80,40,"NORMAL"]]|routes:[["R1","T1","-1"]]`, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "valid")
}

func TestRenderCmd(t *testing.T) {
	out, err := run(t, orderPayload, "render", "--format", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")

	_, err = run(t, orderPayload, "render", "--format", "image")
	assert.ErrorContains(t, err, "--output")

	img := filepath.Join(t.TempDir(), "order.png")
	_, err = run(t, orderPayload, "render", "-f", "png", "-o", img)
	require.NoError(t, err)
	b, err := os.ReadFile(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))
}

func TestQueryCmd(t *testing.T) {
	out, err := run(t, orderPayload, "query", `.routes[] | select(.terminate) | .id`)
	require.NoError(t, err)
	assert.Equal(t, "R2\n", out)

	out, err = run(t, orderPayload, "query", `[.shapes[].kind]`, "-")
	require.NoError(t, err)
	assert.Equal(t, `["task","event"]`+"\n", out)
}

func TestEncodeSaveThenDecodeProcess(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.json")
	t.Setenv("PROCDESIGNER_DB_PATH", filepath.Join(dir, "pd.db"))

	exec := func(stdin string, args ...string) string {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(append([]string{"--settings", settings}, args...))
		require.NoError(t, root.Execute())
		return out.String()
	}

	diagram := `{"shapes":[{"id":"T1","kind":"task","label":"Ship","x":1,"y":2,"width":80,"height":40}],"routes":[{"id":"R1","source_id":"T1","target_id":"-1"}]}`
	assert.Contains(t, exec(diagram, "encode", "--save", "orders"), "revision 1")
	assert.Contains(t, exec("", "decode", "--process", "orders"), `"label": "Ship"`)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}
