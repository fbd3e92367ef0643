package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/validation"
	"github.com/rendis/procdesigner/pkg/schema"
)

const orderPayload = `tasks:[["T1","Check order",10,20,165,40,"NORMAL"]]` +
	`|events:[["S1","EventEmptyStart",0,0,30,30]]` +
	`|routes:[["R1","S1","T1"],["R2","T1","-1"]]`

func newTestServer(t *testing.T) (*httptest.Server, *store.LibSQLStore) {
	t.Helper()
	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	v, err := validation.NewDiagramValidator(nil)
	require.NoError(t, err)

	srv := NewServer(Deps{
		Store:     st,
		Validator: v,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestOpenProcess(t *testing.T) {
	ts, st := newTestServer(t)
	_, err := st.Save(context.Background(), "orders", orderPayload)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/processes/orders/payload")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, orderPayload, readBody(t, resp))
}

func TestOpenProcess_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/processes/missing/payload")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var de schema.DesignerError
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &de))
	assert.Equal(t, schema.ErrCodeNotFound, de.Code)
}

func TestSaveProcess_GroupFields(t *testing.T) {
	ts, st := newTestServer(t)

	form := url.Values{
		"tasks":  {`[["T1","Task A",10,20,80,40,"NORMAL"]]`},
		"routes": {`[["R1","T1","-1"]]`},
	}
	resp, err := http.PostForm(ts.URL+"/processes/p1", form)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res store.SaveResult
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Revision)
	assert.Contains(t, res.Message, "p1")

	body, err := st.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, `tasks:[["T1","Task A",10,20,80,40,"NORMAL"]]|routes:[["R1","T1","-1"]]`, body)
}

func TestSaveProcess_RawPayload(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/processes/p2", url.Values{"payload": {orderPayload}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	body, err := st.Load(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, orderPayload, body)
}

func TestSaveProcess_RejectsBadPayload(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/processes/p3", url.Values{"tasks": {`[["T1",]`}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &raw))
	assert.Equal(t, false, raw["success"])
	assert.NotEmpty(t, raw["msg"])

	_, err = st.Load(context.Background(), "p3")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestDiagram_Formats(t *testing.T) {
	ts, st := newTestServer(t)
	_, err := st.Save(context.Background(), "orders", orderPayload)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/processes/orders/diagram")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := readBody(t, resp)
	assert.Contains(t, out, "Check order")
	assert.Contains(t, out, "Process orders")

	resp, err = http.Get(ts.URL + "/processes/orders/diagram?format=mermaid")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "graph TD")

	resp, err = http.Get(ts.URL + "/processes/orders/diagram?format=svg")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)
}

func TestValidate(t *testing.T) {
	ts, st := newTestServer(t)
	_, err := st.Save(context.Background(), "orders",
		`tasks:[["T1","",10,20,80,40,"NORMAL"]]|routes:[["R1","GHOST","T1"]]`)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/processes/orders/validate")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Valid    bool                     `json:"valid"`
		Warnings []schema.ValidationIssue `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	assert.True(t, out.Valid)

	var codes []string
	for _, w := range out.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, validation.IssueDanglingSource)
	assert.Contains(t, codes, validation.IssueUnlabeledTask)
}

func TestListProcessesAndRevisions(t *testing.T) {
	ts, st := newTestServer(t)
	ctx := context.Background()
	_, err := st.Save(ctx, "orders", orderPayload)
	require.NoError(t, err)
	_, err = st.Save(ctx, "orders", `routes:[]`)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/processes")
	require.NoError(t, err)
	var list struct {
		Count     int              `json:"count"`
		Processes []*store.Process `json:"processes"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 2, list.Processes[0].Revision)
	assert.Empty(t, list.Processes[0].Payload)

	resp, err = http.Get(ts.URL + "/processes/orders/revisions/1/payload")
	require.NoError(t, err)
	assert.Equal(t, orderPayload, readBody(t, resp))

	resp, err = http.Get(ts.URL + "/processes/orders/revisions/zero/payload")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)

	resp, err = http.Get(ts.URL + "/processes?since=yesterday")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)
}

func TestRequestIDEcho(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		schema.ErrCodeNotFound:       http.StatusNotFound,
		schema.ErrCodeConflict:       http.StatusConflict,
		schema.ErrCodeFormat:         http.StatusBadRequest,
		schema.ErrCodeUnknownVariant: http.StatusBadRequest,
		schema.ErrCodeStore:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(code), code)
	}
}

func TestWriteDesignerError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDesignerError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "boom"))
}

func TestSaveProcess_RejectsUnknownVariant(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/processes/p4", url.Values{
		"gateways": {`[["G1","GatewayBogus",1,2,40,40]]`},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "GatewayBogus")

	_, err = st.Load(context.Background(), "p4")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}
