package cmd

import (
	"testing"

	"github.com/jpequegn/wasmbench/internal/runspec"
	"github.com/jpequegn/wasmbench/internal/workload"
)

func TestGroupCellsByTaskScale(t *testing.T) {
	cells := []runspec.Cell{
		{Task: workload.TaskMandelbrot, ScaleName: "small", Language: "owned"},
		{Task: workload.TaskMandelbrot, ScaleName: "small", Language: "gc"},
		{Task: workload.TaskMatmul, ScaleName: "large", Language: "owned"},
	}
	groups := groupCellsByTaskScale(cells)

	if len(groups["mandelbrot/small"]) != 2 {
		t.Fatalf("expected 2 cells grouped under mandelbrot/small, got %d", len(groups["mandelbrot/small"]))
	}
	if len(groups["matmul/large"]) != 1 {
		t.Fatalf("expected 1 cell grouped under matmul/large, got %d", len(groups["matmul/large"]))
	}
}
