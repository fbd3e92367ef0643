// Package payload implements the diagram exchange format shared by the
// designer and the persistence layer.
//
// A version 1 payload is a list of groups joined by "|", each written as
// "<name>:<json array>":
//
//	tasks:[["T1","Task A",10,20,80,40,"NORMAL"]]|routes:[]
//
// A version 2 payload is a single JSON object carrying the same positional
// arrays plus "version": 2, so labels may contain any character.
package payload

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rendis/procdesigner/internal/validation"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Format versions.
const (
	VersionLegacy   = 1
	VersionDocument = 2
)

const (
	groupSep = "|"
	fieldSep = ":"
)

var loadSchemas = sync.OnceValues(validation.NewPayloadSchemas)

type encodeConfig struct {
	version int
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeConfig)

// WithVersion selects the output format version.
func WithVersion(v int) EncodeOption {
	return func(c *encodeConfig) { c.version = v }
}

// Encode serializes a diagram. The default output is the version 1 format.
func Encode(d *schema.Diagram, opts ...EncodeOption) (string, error) {
	cfg := encodeConfig{version: VersionLegacy}
	for _, o := range opts {
		o(&cfg)
	}
	return EncodeGroups(FromDiagram(d), cfg.version)
}

// EncodeGroups serializes already classified record groups.
func EncodeGroups(g *Groups, version int) (string, error) {
	switch version {
	case VersionLegacy:
		return encodeLegacy(g)
	case VersionDocument:
		return encodeDocument(g)
	default:
		return "", schema.NewErrorf(schema.ErrCodeFormat, "unsupported payload version %d", version)
	}
}

func encodeLegacy(g *Groups) (string, error) {
	if err := checkDelimiters(g); err != nil {
		return "", err
	}

	parts := make([]string, 0, 7)
	add := func(name string, arr any, n int) error {
		if n == 0 {
			return nil
		}
		b, err := marshalJSON(arr)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeFormat, "encode %s: %s", name, err.Error()).WithCause(err)
		}
		parts = append(parts, name+fieldSep+string(b))
		return nil
	}

	steps := []struct {
		name string
		arr  any
		n    int
	}{
		{GroupTasks, g.Tasks, len(g.Tasks)},
		{GroupGateways, g.Gateways, len(g.Gateways)},
		{GroupEvents, g.Events, len(g.Events)},
		{GroupAnnotations, g.Annotations, len(g.Annotations)},
		{GroupSubProcess, g.SubProcesses, len(g.SubProcesses)},
	}
	for _, s := range steps {
		if err := add(s.name, s.arr, s.n); err != nil {
			return "", err
		}
	}
	if len(g.Process) > 0 {
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, g.Process); err != nil {
			return "", schema.NewError(schema.ErrCodeFormat, "encode process: invalid JSON").WithCause(err)
		}
		if strings.Contains(compacted.String(), groupSep) {
			return "", schema.NewError(schema.ErrCodeUnsafeDelimiter, "process attributes contain the group delimiter")
		}
		parts = append(parts, GroupProcess+fieldSep+compacted.String())
	}

	routes := g.Routes
	if routes == nil {
		routes = []RouteRecord{}
	}
	b, err := marshalJSON(routes)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeFormat, "encode routes: %s", err.Error()).WithCause(err)
	}
	parts = append(parts, GroupRoutes+fieldSep+string(b))

	return strings.Join(parts, groupSep), nil
}

func encodeDocument(g *Groups) (string, error) {
	doc := *g
	doc.Version = VersionDocument
	if doc.Routes == nil {
		doc.Routes = []RouteRecord{}
	}
	b, err := marshalJSON(doc)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeFormat, "encode document: %s", err.Error()).WithCause(err)
	}
	return string(b), nil
}

// checkDelimiters rejects text the version 1 format cannot carry. The format
// has no escaping, so a "|" inside a label would split the payload on reload.
func checkDelimiters(g *Groups) error {
	check := func(id string, values ...string) error {
		for _, v := range values {
			if strings.Contains(v, groupSep) {
				return schema.NewErrorf(schema.ErrCodeUnsafeDelimiter,
					"%q contains %q, which the version 1 format cannot carry; use version 2", v, groupSep).
					WithShape(id)
			}
		}
		return nil
	}
	for _, r := range g.Tasks {
		if err := check(r.ID, r.ID, r.Label); err != nil {
			return err
		}
	}
	for _, r := range g.Gateways {
		if err := check(r.ID, r.ID, r.Variant); err != nil {
			return err
		}
	}
	for _, r := range g.Events {
		if err := check(r.ID, r.ID, r.Variant); err != nil {
			return err
		}
	}
	for _, r := range g.Annotations {
		if err := check(r.ID, r.ID, r.Variant, r.Label); err != nil {
			return err
		}
	}
	for _, r := range g.SubProcesses {
		if err := check(r.ID, r.ID, r.Label); err != nil {
			return err
		}
	}
	for _, r := range g.Routes {
		if err := check(r.ID, r.ID, r.SourceID, r.TargetID); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a payload of either version into record groups. It does not
// build any live shapes. An empty payload decodes to empty groups.
func Decode(s string) (*Groups, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return &Groups{Version: VersionLegacy, Routes: []RouteRecord{}}, nil
	}

	schemas, err := loadSchemas()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeFormat, "payload schemas unavailable").WithCause(err)
	}

	if DetectVersion(trimmed) == VersionDocument {
		return decodeDocument(trimmed, schemas)
	}
	return decodeLegacy(s, schemas)
}

func decodeLegacy(s string, schemas *validation.PayloadSchemas) (*Groups, error) {
	g := &Groups{Version: VersionLegacy, Routes: []RouteRecord{}}

	for i, segment := range strings.Split(s, groupSep) {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		name, raw, ok := strings.Cut(segment, fieldSep)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeFormat, "segment %d has no %q separator", i, fieldSep).
				WithDetails(map[string]any{"segment": i})
		}
		name = strings.ReplaceAll(strings.TrimSpace(name), " ", "")
		body := []byte(strings.TrimSpace(raw))

		if name == GroupProcess {
			if !json.Valid(body) {
				return nil, schema.NewError(schema.ErrCodeFormat, "process: invalid JSON")
			}
			g.Process = json.RawMessage(body)
			continue
		}
		if !isShapeGroup(name) {
			g.Ignored = append(g.Ignored, name)
			continue
		}
		if err := schemas.ValidateGroup(name, body); err != nil {
			return nil, err
		}
		if err := unmarshalGroup(g, name, body); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func decodeDocument(s string, schemas *validation.PayloadSchemas) (*Groups, error) {
	if err := schemas.ValidateDocument([]byte(s)); err != nil {
		return nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFormat, "document: %s", err.Error()).WithCause(err)
	}

	g := &Groups{}
	if err := json.Unmarshal([]byte(s), g); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFormat, "document: %s", err.Error()).WithCause(err)
	}
	if g.Routes == nil {
		g.Routes = []RouteRecord{}
	}
	for k := range keys {
		if k != "version" && k != GroupProcess && !isShapeGroup(k) {
			g.Ignored = append(g.Ignored, k)
		}
	}
	sort.Strings(g.Ignored)
	return g, nil
}

// DetectVersion reports the format version of an encoded payload without
// decoding it.
func DetectVersion(s string) int {
	if strings.HasPrefix(strings.TrimSpace(s), "{") {
		return VersionDocument
	}
	return VersionLegacy
}

func isShapeGroup(name string) bool {
	switch name {
	case GroupTasks, GroupGateways, GroupEvents, GroupAnnotations, GroupSubProcess, GroupRoutes:
		return true
	}
	return false
}

func unmarshalGroup(g *Groups, name string, body []byte) error {
	var err error
	switch name {
	case GroupTasks:
		g.Tasks = nil
		err = json.Unmarshal(body, &g.Tasks)
	case GroupGateways:
		g.Gateways = nil
		err = json.Unmarshal(body, &g.Gateways)
	case GroupEvents:
		g.Events = nil
		err = json.Unmarshal(body, &g.Events)
	case GroupAnnotations:
		g.Annotations = nil
		err = json.Unmarshal(body, &g.Annotations)
	case GroupSubProcess:
		g.SubProcesses = nil
		err = json.Unmarshal(body, &g.SubProcesses)
	case GroupRoutes:
		g.Routes = []RouteRecord{}
		err = json.Unmarshal(body, &g.Routes)
	}
	if err == nil {
		return nil
	}
	if schema.IsCode(err, schema.ErrCodeFormat) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeFormat, "%s: %s", name, err.Error()).WithCause(err)
}

// marshalJSON encodes v without HTML escaping and without a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
