package schema

import "fmt"

// ValidationSeverity is error or warning. Only errors make a diagram invalid.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one finding. ShapeID or RouteID names the element it is
// about; both are empty for findings about the diagram as a whole.
type ValidationIssue struct {
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
	ShapeID  string             `json:"shape_id,omitempty"`
	RouteID  string             `json:"route_id,omitempty"`
}

// Location is a short human readable form of what the issue is about.
func (i ValidationIssue) Location() string {
	switch {
	case i.ShapeID != "":
		return "shape " + i.ShapeID
	case i.RouteID != "":
		return "route " + i.RouteID
	default:
		return "diagram"
	}
}

// ValidationResult holds the findings for one diagram, split by severity.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether there are no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ShapeIssue records a finding about a shape.
func (r *ValidationResult) ShapeIssue(sev ValidationSeverity, shapeID, code, message string) {
	r.add(ValidationIssue{Code: code, Message: message, Severity: sev, ShapeID: shapeID})
}

// RouteIssue records a finding about a route.
func (r *ValidationResult) RouteIssue(sev ValidationSeverity, routeID, code, message string) {
	r.add(ValidationIssue{Code: code, Message: message, Severity: sev, RouteID: routeID})
}

// DiagramIssue records a finding that belongs to no single element.
func (r *ValidationResult) DiagramIssue(sev ValidationSeverity, code, message string) {
	r.add(ValidationIssue{Code: code, Message: message, Severity: sev})
}

func (r *ValidationResult) add(is ValidationIssue) {
	if is.Severity == SeverityError {
		r.Errors = append(r.Errors, is)
		return
	}
	is.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, is)
}

// ByShape groups the shape findings by shape id, errors before warnings.
func (r *ValidationResult) ByShape() map[string][]ValidationIssue {
	out := make(map[string][]ValidationIssue)
	for _, list := range [][]ValidationIssue{r.Errors, r.Warnings} {
		for _, is := range list {
			if is.ShapeID != "" {
				out[is.ShapeID] = append(out[is.ShapeID], is)
			}
		}
	}
	return out
}

// ToError returns a VALIDATION_ERROR describing the errors, or nil.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}
	first := r.Errors[0]
	msg := first.Location() + ": " + first.Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("%d errors in diagram, first at %s: %s", len(r.Errors), first.Location(), first.Message)
	}
	return NewError(ErrCodeValidation, msg).WithDetails(map[string]any{
		"errors":   r.Errors,
		"warnings": len(r.Warnings),
	})
}
