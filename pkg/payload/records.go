package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/rendis/procdesigner/pkg/schema"
)

// TaskRecord is one entry of the tasks group:
// [id, label, x, y, width, height, marker].
type TaskRecord struct {
	ID     string
	Label  string
	X, Y   int
	Width  int
	Height int
	Marker string // NORMAL or TIMER
}

// GatewayRecord is one entry of the gateways group:
// [id, variant, x, y, width, height].
type GatewayRecord struct {
	ID      string
	Variant string
	X, Y    int
	Width   int
	Height  int
}

// EventRecord is one entry of the events group:
// [id, variant, x, y, width, height].
type EventRecord struct {
	ID      string
	Variant string
	X, Y    int
	Width   int
	Height  int
}

// AnnotationRecord is one entry of the annotations group:
// [id, variant, x, y, width, height, label].
type AnnotationRecord struct {
	ID      string
	Variant string
	X, Y    int
	Width   int
	Height  int
	Label   string
}

// SubProcessRecord is one entry of the subprocess group:
// [id, label, x, y, width, height, "SUBPROCESS"].
type SubProcessRecord struct {
	ID     string
	Label  string
	X, Y   int
	Width  int
	Height int
	Marker string
}

// RouteRecord is one entry of the routes group: [id, source, target],
// extended to [id, source, target, "", "", "EVALUATE"] for evaluate exits.
type RouteRecord struct {
	ID       string
	SourceID string
	TargetID string
	Evaluate bool
}

func (r TaskRecord) MarshalJSON() ([]byte, error) {
	marker := r.Marker
	if marker == "" {
		marker = schema.MarkerNormal
	}
	return marshalArray(r.ID, r.Label, r.X, r.Y, r.Width, r.Height, marker)
}

func (r *TaskRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "task")
	if err != nil {
		return err
	}
	*r = TaskRecord{ID: f.str(0), Label: f.str(1), Marker: f.str(6)}
	return f.ints(&r.X, &r.Y, &r.Width, &r.Height)
}

func (r GatewayRecord) MarshalJSON() ([]byte, error) {
	return marshalArray(r.ID, r.Variant, r.X, r.Y, r.Width, r.Height)
}

func (r *GatewayRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "gateway")
	if err != nil {
		return err
	}
	*r = GatewayRecord{ID: f.str(0), Variant: f.str(1)}
	return f.ints(&r.X, &r.Y, &r.Width, &r.Height)
}

func (r EventRecord) MarshalJSON() ([]byte, error) {
	return marshalArray(r.ID, r.Variant, r.X, r.Y, r.Width, r.Height)
}

func (r *EventRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "event")
	if err != nil {
		return err
	}
	*r = EventRecord{ID: f.str(0), Variant: f.str(1)}
	return f.ints(&r.X, &r.Y, &r.Width, &r.Height)
}

func (r AnnotationRecord) MarshalJSON() ([]byte, error) {
	variant := r.Variant
	if variant == "" {
		variant = schema.VariantAnnotation
	}
	return marshalArray(r.ID, variant, r.X, r.Y, r.Width, r.Height, r.Label)
}

func (r *AnnotationRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "annotation")
	if err != nil {
		return err
	}
	*r = AnnotationRecord{ID: f.str(0), Variant: f.str(1), Label: f.str(6)}
	// Older saves wrote the annotation text in slot 1 and had no slot 6.
	if r.Label == "" && len(f) < 7 && !strings.Contains(r.Variant, schema.VariantAnnotation) {
		r.Label, r.Variant = r.Variant, schema.VariantAnnotation
	}
	return f.ints(&r.X, &r.Y, &r.Width, &r.Height)
}

func (r SubProcessRecord) MarshalJSON() ([]byte, error) {
	return marshalArray(r.ID, r.Label, r.X, r.Y, r.Width, r.Height, schema.MarkerSubProcess)
}

func (r *SubProcessRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "subprocess")
	if err != nil {
		return err
	}
	*r = SubProcessRecord{ID: f.str(0), Label: f.str(1), Marker: f.str(6)}
	return f.ints(&r.X, &r.Y, &r.Width, &r.Height)
}

func (r RouteRecord) MarshalJSON() ([]byte, error) {
	if r.Evaluate {
		return marshalArray(r.ID, r.SourceID, r.TargetID, "", "", schema.MarkerEvaluate)
	}
	return marshalArray(r.ID, r.SourceID, r.TargetID)
}

func (r *RouteRecord) UnmarshalJSON(data []byte) error {
	f, err := unmarshalFields(data, "route")
	if err != nil {
		return err
	}
	*r = RouteRecord{
		ID:       f.str(0),
		SourceID: f.str(1),
		TargetID: f.str(2),
		Evaluate: f.str(5) == schema.MarkerEvaluate,
	}
	return nil
}

// marshalArray writes a positional JSON array without HTML escaping, so
// labels such as "A & B" keep their bytes.
func marshalArray(values ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// fields is a decoded positional array. Missing trailing slots read as zero values.
type fields []any

func unmarshalFields(data []byte, what string) (fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f fields
	if err := dec.Decode(&f); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFormat, "%s record: %s", what, err.Error()).WithCause(err)
	}
	return f, nil
}

func (f fields) str(i int) string {
	if i >= len(f) || f[i] == nil {
		return ""
	}
	if n, ok := f[i].(json.Number); ok {
		return n.String()
	}
	s, err := cast.ToStringE(f[i])
	if err != nil {
		return fmt.Sprint(f[i])
	}
	return s
}

// ints reads slots 2..5 (x, y, width, height) into the given targets.
func (f fields) ints(targets ...*int) error {
	for j, target := range targets {
		n, err := f.num(j + 2)
		if err != nil {
			return err
		}
		*target = n
	}
	return nil
}

// num reads a coordinate that may be a JSON number or a numeric string.
func (f fields) num(i int) (int, error) {
	if i >= len(f) || f[i] == nil {
		return 0, nil
	}
	v := f[i]
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
		if v == "" {
			return 0, nil
		}
	}
	x, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeFormat, "field %d: %v is not a coordinate", i, f[i]).WithCause(err)
	}
	x = math.Round(x)
	if math.IsNaN(x) || x < math.MinInt || x >= math.MaxInt {
		return 0, schema.NewErrorf(schema.ErrCodeFormat, "field %d: %v is out of range", i, f[i])
	}
	return int(x), nil
}
