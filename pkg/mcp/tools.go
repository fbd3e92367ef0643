package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/procdesigner/internal/designer"
	"github.com/rendis/procdesigner/internal/diagram"
	"github.com/rendis/procdesigner/internal/logging"
	"github.com/rendis/procdesigner/pkg/schema"
)

// handleLoad opens a stored process in the caller's designer session.
func (s *DesignerServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	processID, err := req.RequireString("process_id")
	if err != nil {
		return mcp.NewToolResultError("process_id is required"), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}

	clientID := clientFromContext(ctx)
	sess := s.newSession()
	ctx = logging.WithSessionID(ctx, sess.ID())
	if loadErr := sess.Load(ctx, processID); loadErr != nil {
		return toolError("load failed", loadErr), nil
	}
	s.sessions.Register(clientID, sess)

	return marshalResult(map[string]any{
		"process_id":  processID,
		"session_id":  sess.ID(),
		"diagram":     sess.Snapshot(),
		"diagnostics": sess.Diagnostics(),
		"task_no":     sess.TaskNo,
	})
}

// handleSave stores an explicit payload, or saves the caller's open session.
func (s *DesignerServer) handleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	processID := req.GetString("process_id", "")
	body := req.GetString("payload", "")
	async := req.GetBool("async", false)
	clientID := clientFromContext(ctx)

	if body != "" {
		if processID == "" {
			return mcp.NewToolResultError("process_id is required with payload"), nil
		}
		// A throwaway session applies the same variant and kind checks as designer.load.
		scratch := designer.NewSession(designer.Config{Registry: s.registry, Logger: s.logger})
		if loadErr := scratch.LoadPayload(logging.WithProcessID(ctx, processID), body); loadErr != nil {
			return toolError("payload rejected", loadErr), nil
		}
		res, saveErr := s.store.Save(logging.WithProcessID(ctx, processID), processID, body)
		if saveErr != nil {
			return toolError("save failed", saveErr), nil
		}
		return marshalResult(res)
	}

	var result *mcp.CallToolResult
	var resultErr error
	open := s.sessions.With(clientID, func(sess *designer.Session) {
		result, resultErr = s.saveSession(ctx, clientID, sess, processID, async)
	})
	if !open {
		return mcp.NewToolResultError("no process is open; call designer.load or pass payload"), nil
	}
	return result, resultErr
}

func (s *DesignerServer) saveSession(ctx context.Context, clientID string, sess *designer.Session, processID string, async bool) (*mcp.CallToolResult, error) {
	if processID != "" {
		sess.SetProcessID(processID)
	}
	ctx = logging.WithSessionID(ctx, sess.ID())

	if async {
		outcome := sess.SaveAsync(context.WithoutCancel(ctx))
		go s.reportSave(ctx, clientID, sess.ProcessID(), outcome)
		return marshalResult(map[string]any{"submitted": true, "process_id": sess.ProcessID()})
	}

	res, saveErr := sess.Save(ctx)
	if saveErr != nil {
		if res != nil {
			return marshalResult(res)
		}
		return toolError("save failed", saveErr), nil
	}
	return marshalResult(res)
}

// reportSave forwards the outcome of a background save to the client.
func (s *DesignerServer) reportSave(ctx context.Context, clientID, processID string, outcome <-chan designer.SaveOutcome) {
	o := <-outcome
	msg := map[string]any{"process_id": processID, "success": false}
	switch {
	case o.Err != nil && o.Result == nil:
		msg["msg"] = o.Err.Error()
	case o.Result != nil:
		msg["success"] = o.Result.Success
		msg["msg"] = o.Result.Message
		msg["revision"] = o.Result.Revision
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), clientID, msg); err != nil {
		s.logger.WarnContext(ctx, "save notification failed", "error", err)
	}
}

// handleValidate reports validation issues for a stored process or a payload.
func (s *DesignerServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, processID, errResult := s.inspect(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return marshalResult(map[string]any{
		"process_id": processID,
		"valid":      in.Result.Valid(),
		"errors":     in.Result.Errors,
		"warnings":   in.Result.Warnings,
		"ignored":    in.Groups.Ignored,
	})
}

// handleDiagram draws a process in the requested format.
func (s *DesignerServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	format, fmtErr := diagram.ParseFormat(raw)
	if fmtErr != nil {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	in, processID, errResult := s.inspect(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	out, renderErr := diagram.Render(ctx, in.Model(processID), format, s.asciiBin)
	if renderErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", renderErr)), nil
	}
	if format == diagram.FormatImage {
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// handleQuery runs a jq expression over the JSON form of a diagram.
func (s *DesignerServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	in, _, errResult := s.inspect(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	out, qErr := s.jq.EvaluateAll(ctx, expression, in.Data())
	if qErr != nil {
		return toolError("query failed", qErr), nil
	}
	return marshalResult(map[string]any{"results": out, "count": len(out)})
}

// inspect resolves the diagram a read-only tool works on: an explicit
// payload, a stored process, or the caller's open session, in that order.
func (s *DesignerServer) inspect(ctx context.Context, req mcp.CallToolRequest) (*designer.Inspection, string, *mcp.CallToolResult) {
	processID := req.GetString("process_id", "")
	body := req.GetString("payload", "")

	switch {
	case body != "":
	case processID != "":
		if s.store == nil {
			return nil, "", mcp.NewToolResultError("no store configured")
		}
		stored, err := s.store.Load(logging.WithProcessID(ctx, processID), processID)
		if err != nil {
			return nil, "", toolError("load failed", err)
		}
		body = stored
	default:
		var encErr error
		open := s.sessions.With(clientFromContext(ctx), func(sess *designer.Session) {
			body, encErr = sess.Encode()
			processID = sess.ProcessID()
		})
		if !open {
			return nil, "", mcp.NewToolResultError("one of process_id or payload is required")
		}
		if encErr != nil {
			return nil, "", toolError("encode failed", encErr)
		}
	}

	in, err := designer.Inspect(ctx, body, s.validator)
	if err != nil {
		return nil, "", toolError("decode failed", err)
	}
	return in, processID, nil
}

// clientFromContext returns the MCP client session ID, or localClient.
func clientFromContext(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return localClient
}

// toolError formats an error result, keeping the designer error code visible.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var de *schema.DesignerError
	if errors.As(err, &de) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: [%s] %s", prefix, de.Code, de.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
