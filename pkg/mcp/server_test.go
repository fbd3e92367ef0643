package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdesigner/internal/designer"
)

func TestNewDesignerServer(t *testing.T) {
	s := NewDesignerServer(DesignerServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.registry)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s := NewDesignerServer(DesignerServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 5)

	for _, name := range []string{
		"designer.load",
		"designer.save",
		"designer.validate",
		"designer.diagram",
		"designer.query",
	} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName    string
		description string
	}{
		{"designer.load", "Open a stored process in this client's designer session"},
		{"designer.save", "Store a process payload, or the diagram open in this session"},
		{"designer.query", "Run a jq expression over a process diagram"},
	}

	s := NewDesignerServer(DesignerServerDeps{})
	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}

func TestNoStoreConfigured(t *testing.T) {
	s := NewDesignerServer(DesignerServerDeps{})

	result, err := s.handleLoad(context.Background(), buildRequest("designer.load", map[string]any{"process_id": "p"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleSave(context.Background(), buildRequest("designer.save", map[string]any{"process_id": "p", "payload": "routes:[]"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Read-only tools work on payloads without a store.
	result, err = s.handleValidate(context.Background(), buildRequest("designer.validate", map[string]any{"payload": "routes:[]"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	a := designer.NewSession(designer.Config{})
	b := designer.NewSession(designer.Config{})

	r.Register("c1", a)
	got, ok := r.SessionFor("c1")
	require.True(t, ok)
	assert.Same(t, a, got)

	r.Register("c1", b)
	got, _ = r.SessionFor("c1")
	assert.Same(t, b, got)
	assert.Equal(t, 1, r.Len())

	r.Remove("c1")
	_, ok = r.SessionFor("c1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestSessionRegistry_WithSerializes(t *testing.T) {
	r := NewSessionRegistry()
	sess := designer.NewSession(designer.Config{})
	r.Register("c1", sess)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := r.With("c1", func(got *designer.Session) {
				assert.Same(t, sess, got)
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
			})
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())

	called := false
	assert.False(t, r.With("nobody", func(*designer.Session) { called = true }))
	assert.False(t, called)
}

func TestNotifier_LocalClientIsNoop(t *testing.T) {
	s := NewDesignerServer(DesignerServerDeps{})
	assert.NoError(t, s.notifier.Notify(context.Background(), localClient, map[string]any{"success": true}))
	assert.NoError(t, s.notifier.Notify(context.Background(), "gone", map[string]any{"success": true}))
}
