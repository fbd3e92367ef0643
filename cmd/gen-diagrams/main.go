// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/procdesigner/internal/designer"
	"github.com/rendis/procdesigner/internal/diagram"
	"github.com/rendis/procdesigner/internal/validation"
)

// sample is an order process: start, check, an exclusive gateway with two
// branches, a timer-guarded approval, and an evaluate route that ends the flow.
const sample = `tasks:[["T1","Check stock",120,40,165,40,"NORMAL"],` +
	`["T2","Take payment",60,200,165,40,"NORMAL"],` +
	`["T3","Notify restock",300,200,165,40,"NORMAL"],` +
	`["T4","Approve shipping",180,320,165,40,"TIMER"]]` +
	`|gateways:[["G1","GatewayExclusiveData",180,120,40,40]]` +
	`|events:[["S1","EventEmptyStart",20,40,30,30]]` +
	`|annotations:[["A1","Annotation",400,40,120,40,"Stock is checked nightly"]]` +
	`|routes:[["R1","S1","T1"],["R2","T1","G1"],["R3","G1","T2"],["R4","G1","T3"],` +
	`["R5","T2","T4"],["R6","T3","-1"],["R7","T4","-1","","","EVALUATE"]]`

func main() {
	ctx := context.Background()

	v, err := validation.NewDiagramValidator(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validator: %v\n", err)
		os.Exit(1)
	}
	in, err := designer.Inspect(ctx, sample, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode error: %v\n", err)
		os.Exit(1)
	}
	model := in.Model("orders")

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	// ASCII (mermaid-ascii with hand-rolled fallback)
	home, _ := os.UserHomeDir()
	ascii := diagram.RenderASCIIAuto(ctx, model, filepath.Join(home, ".procdesigner", "bin", "mermaid-ascii"))
	write(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii))
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	write(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"))
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	png, err := diagram.RenderImage(ctx, model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", err)
		os.Exit(1)
	}
	write(filepath.Join(outDir, "diagram-image.png"), png)
	fmt.Printf("=== Image ===\nWrote %d bytes to %s\n", len(png), filepath.Join(outDir, "diagram-image.png"))
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}
