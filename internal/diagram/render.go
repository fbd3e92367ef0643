package diagram

import (
	"context"
	"strings"

	"github.com/rendis/procdesigner/pkg/schema"
)

// Format selects a renderer.
type Format string

const (
	FormatASCII   Format = "ascii"
	FormatMermaid Format = "mermaid"
	FormatImage   Format = "image"
)

// ParseFormat maps a user supplied format name to a Format. Empty means ascii.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatASCII, nil
	case FormatASCII, FormatMermaid, FormatImage:
		return f, nil
	case "png":
		return FormatImage, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q (want ascii, mermaid or image)", s)
	}
}

// ContentType is the MIME type of the rendered output.
func (f Format) ContentType() string {
	if f == FormatImage {
		return "image/png"
	}
	return "text/plain; charset=utf-8"
}

// Render dispatches to the renderer for f. asciiBin is the optional
// mermaid-ascii binary used for FormatASCII.
func Render(ctx context.Context, model *DiagramModel, f Format, asciiBin string) ([]byte, error) {
	switch f {
	case FormatMermaid:
		return []byte(RenderMermaid(model)), nil
	case FormatImage:
		return RenderImage(ctx, model)
	default:
		return []byte(RenderASCIIAuto(ctx, model, asciiBin)), nil
	}
}
