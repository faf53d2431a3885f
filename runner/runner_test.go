package runner

import (
	"testing"

	"github.com/tenscale/kernelgen/emitter"
	"github.com/tenscale/kernelgen/ops"
	"github.com/tenscale/kernelgen/utils"
)

func emitAdd(t *testing.T, n int64, partitions []int64) *emitter.KernelSpec {
	t.Helper()
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{n})
	y := g.AddParameter("y", 1, ops.Shape{n})
	sum := g.AddBinary("sum", ops.Add, x, y)
	if partitions != nil {
		g.Node(sum).SetOuterDimensionPartitions(partitions)
	}

	spec, err := emitter.NewElementalKernelEmitter(g, sum).EmitKernelSpec()
	if err != nil {
		t.Fatalf("EmitKernelSpec failed: %v", err)
	}
	return spec
}

func TestRunElementwiseAdd(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	const n = 128
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = float64(i)
		b[i] = 3 * float64(i)
	}

	cases := []struct {
		name       string
		partitions []int64
		wantX      int64
	}{
		{"Serial", nil, 1},
		{"Partitioned", []int64{4}, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := emitAdd(t, n, tc.partitions)
			if spec.ThreadDims.X != tc.wantX {
				t.Fatalf("thread dims x = %d, want %d", spec.ThreadDims.X, tc.wantX)
			}

			r, err := NewRunner(device, spec)
			if err != nil {
				t.Fatalf("NewRunner failed: %v", err)
			}
			defer r.Free()

			out := make([]float64, n)
			if err := r.Run([][]float64{a, b}, [][]float64{out}); err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			for i := range out {
				if want := a[i] + b[i]; out[i] != want {
					t.Fatalf("out[%d] = %g, want %g", i, out[i], want)
				}
			}
		})
	}
}

// TestRunBufferReuse runs the same compiled kernel twice with fresh data;
// pooled device buffers must be reused without stale results.
func TestRunBufferReuse(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	const n = 32
	spec := emitAdd(t, n, []int64{2})

	r, err := NewRunner(device, spec)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	defer r.Free()

	for round := 0; round < 2; round++ {
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = float64(i * (round + 1))
			b[i] = 1
		}
		out := make([]float64, n)
		if err := r.Run([][]float64{a, b}, [][]float64{out}); err != nil {
			t.Fatalf("Run failed on round %d: %v", round, err)
		}
		for i := range out {
			if want := a[i] + b[i]; out[i] != want {
				t.Fatalf("round %d: out[%d] = %g, want %g", round, i, out[i], want)
			}
		}
	}
}
