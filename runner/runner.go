// Package runner executes emitted kernel specs on an OCCA device. It owns
// the compiled kernel and a pool of device buffers sized to the kernel's
// argument and result views.
package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"

	"github.com/tenscale/kernelgen/emitter"
)

// Runner compiles one KernelSpec for a device and launches it. Device
// buffers are pooled per parameter and reused across runs of the same
// sizes.
type Runner struct {
	Device *gocca.OCCADevice

	spec   *emitter.KernelSpec
	kernel *gocca.OCCAKernel

	pooledMemory map[string]*gocca.OCCAMemory
	pooledSizes  map[string]int64
}

// NewRunner builds the spec's generated module for the device and returns a
// runner holding the compiled kernel.
func NewRunner(device *gocca.OCCADevice, spec *emitter.KernelSpec) (*Runner, error) {
	if device == nil {
		panic("device cannot be nil")
	}
	if spec == nil || spec.Module == nil {
		panic("kernel spec cannot be nil")
	}

	source := spec.Module.Source()

	var kernel *gocca.OCCAKernel
	var err error
	if device.Mode() == "OpenMP" {
		// OCCA's OpenMP mode misses the default -O3 flag.
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = device.BuildKernelFromString(source, spec.ExportedName, props)
	} else {
		kernel, err = device.BuildKernelFromString(source, spec.ExportedName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", spec.ExportedName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", spec.ExportedName)
	}

	return &Runner{
		Device:       device,
		spec:         spec,
		kernel:       kernel,
		pooledMemory: make(map[string]*gocca.OCCAMemory),
		pooledSizes:  make(map[string]int64),
	}, nil
}

// ThreadDims returns the launch sizing the kernel was emitted with
func (r *Runner) ThreadDims() emitter.ThreadDim {
	return r.spec.ThreadDims
}

// Run copies args to the device, launches the kernel with its emitted
// thread count, and copies each result back into the provided slices.
// Argument and result order must match the kernel's parameter order.
func (r *Runner) Run(args [][]float64, results [][]float64) error {
	kernelArgs := []interface{}{r.spec.ThreadDims.X}

	for i, arg := range args {
		mem, err := r.deviceBuffer(fmt.Sprintf("arg%d", i), int64(len(arg))*8)
		if err != nil {
			return err
		}
		if len(arg) > 0 {
			mem.CopyFrom(unsafe.Pointer(&arg[0]), int64(len(arg))*8)
		}
		kernelArgs = append(kernelArgs, mem)
	}

	resultMems := make([]*gocca.OCCAMemory, len(results))
	for i, res := range results {
		mem, err := r.deviceBuffer(fmt.Sprintf("res%d", i), int64(len(res))*8)
		if err != nil {
			return err
		}
		resultMems[i] = mem
		kernelArgs = append(kernelArgs, mem)
	}

	if err := r.kernel.RunWithArgs(kernelArgs...); err != nil {
		return fmt.Errorf("failed to run kernel %s: %w", r.spec.ExportedName, err)
	}

	for i, res := range results {
		if len(res) > 0 {
			resultMems[i].CopyTo(unsafe.Pointer(&res[0]), int64(len(res))*8)
		}
	}
	return nil
}

// deviceBuffer returns the pooled buffer for a parameter, reallocating when
// the requested size changes.
func (r *Runner) deviceBuffer(name string, size int64) (*gocca.OCCAMemory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer %s has invalid size %d", name, size)
	}
	if mem, ok := r.pooledMemory[name]; ok {
		if r.pooledSizes[name] == size {
			return mem, nil
		}
		mem.Free()
		delete(r.pooledMemory, name)
	}

	mem := r.Device.Malloc(size, nil, nil)
	if mem == nil {
		return nil, fmt.Errorf("failed to allocate %d bytes for %s", size, name)
	}
	r.pooledMemory[name] = mem
	r.pooledSizes[name] = size
	return mem, nil
}

// Free releases the compiled kernel and all pooled device memory
func (r *Runner) Free() {
	if r.kernel != nil {
		r.kernel.Free()
		r.kernel = nil
	}
	for _, mem := range r.pooledMemory {
		mem.Free()
	}
	r.pooledMemory = make(map[string]*gocca.OCCAMemory)
	r.pooledSizes = make(map[string]int64)
}
