//go:build windows

package accel

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	storageUsage  = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	minBufferSize = 16
)

// gpuBuffer is a device buffer with its byte size.
type gpuBuffer struct {
	*wgpu.Buffer
	size uint64
}

// webgpuEngine runs float32 placement kernels through WebGPU compute shaders.
type webgpuEngine struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu        sync.Mutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	static    *bufferCache[gpuBuffer]
}

func newWebGPUEngine() (e engine, err error) {
	// wgpu_native may be missing at runtime.
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = &placeerr.CapabilityError{
				Op:     "accel.New",
				Device: "webgpu",
				Reason: fmt.Sprintf("native library not available: %v", r),
			}
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, &placeerr.CapabilityError{Op: "accel.New", Device: "webgpu", Reason: "no adapter: " + err.Error()}
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, &placeerr.CapabilityError{Op: "accel.New", Device: "webgpu", Reason: "no device: " + err.Error()}
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, &placeerr.CapabilityError{Op: "accel.New", Device: "webgpu", Reason: "no queue"}
	}

	return &webgpuEngine{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		static:    newBufferCache(func(b gpuBuffer) { b.Release() }),
	}, nil
}

func (e *webgpuEngine) name() string { return "WebGPU" }

func (e *webgpuEngine) pipeline(name, code string) *wgpu.ComputePipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pipelines[name]; ok {
		return p
	}
	shader := e.device.CreateShaderModuleWGSL(code)
	e.shaders[name] = shader
	p := e.device.CreateComputePipelineSimple(nil, shader, "main")
	e.pipelines[name] = p
	return p
}

// storage uploads data into a new storage buffer.
func (e *webgpuEngine) storage(data []byte) gpuBuffer {
	size := max(uint64(len(data)), minBufferSize)
	buf := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // G103: mapped range is size bytes long
	mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buf.Unmap()
	return gpuBuffer{Buffer: buf, size: size}
}

// cachedSizes returns device copies of the object sizes of layout.
func (e *webgpuEngine) cachedSizes(layout *placedb.Layout[float32]) (sx, sy gpuBuffer) {
	sx = e.static.get(cacheKey{layout, "size_x"}, func() gpuBuffer { return e.storage(f32Bytes(layout.SizeX)) })
	sy = e.static.get(cacheKey{layout, "size_y"}, func() gpuBuffer { return e.storage(f32Bytes(layout.SizeY)) })
	return sx, sy
}

// cachedIndex returns device copies of the net index arrays.
func (e *webgpuEngine) cachedIndex(nets *placedb.NetIndex) (p2n, flat, start gpuBuffer) {
	p2n = e.static.get(cacheKey{nets, "pin2net"}, func() gpuBuffer { return e.storage(i32Bytes(pin2net(nets))) })
	if nets.HasCSR() {
		flat = e.static.get(cacheKey{nets, "flat"}, func() gpuBuffer { return e.storage(i32Bytes(nets.FlatNetPin)) })
		start = e.static.get(cacheKey{nets, "start"}, func() gpuBuffer { return e.storage(i32Bytes(nets.NetPinStart)) })
	}
	return p2n, flat, start
}

// uniform uploads a 16-byte aligned uniform buffer.
func (e *webgpuEngine) uniform(data []byte) gpuBuffer {
	size := (uint64(len(data)) + 15) &^ 15
	buf := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // G103: mapped range is size bytes long
	mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buf.Unmap()
	return gpuBuffer{Buffer: buf, size: size}
}

// dispatch runs one compute pass of n threads with buffers bound in order.
func (e *webgpuEngine) dispatch(name, code string, n int, buffers ...gpuBuffer) {
	p := e.pipeline(name, code)
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, buf := range buffers {
		entries[i] = wgpu.BufferBindingEntry(uint32(i), buf.Buffer, 0, buf.size) //nolint:gosec // G115: few bindings
	}
	bindGroup := e.device.CreateBindGroupSimple(p.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((n+workgroupSize-1)/workgroupSize), 1, 1) //nolint:gosec // G115: grid size is non-negative
	pass.End()
	e.queue.Submit(encoder.Finish(nil))
}

// read copies the first len(dst) floats of src back to the host.
func (e *webgpuEngine) read(src gpuBuffer, dst []float32) error {
	if len(dst) == 0 {
		return nil
	}
	size := uint64(4 * len(dst))
	staging := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src.Buffer, 0, staging, 0, size)
	e.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(e.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: map staging buffer: %w", err)
	}
	//nolint:gosec // G103: mapped range is size bytes long
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(mapped[4*i:]))
	}
	staging.Unmap()
	return nil
}

func (e *webgpuEngine) moveBoundary(pos []float32, layout *placedb.Layout[float32]) error {
	movableEnd, fillerStart, n := backend.BoundaryRanges(layout)
	if n == 0 {
		return nil
	}
	bufPos := e.storage(f32Bytes(pos))
	defer bufPos.Release()
	bufSX, bufSY := e.cachedSizes(layout)

	params := make([]byte, 32)
	binary.LittleEndian.PutUint32(params[0:], uint32(n))           //nolint:gosec // G115
	binary.LittleEndian.PutUint32(params[4:], uint32(movableEnd))  //nolint:gosec // G115
	binary.LittleEndian.PutUint32(params[8:], uint32(fillerStart)) //nolint:gosec // G115
	r := layout.Region
	for i, v := range []float32{r.XL, r.YL, r.XH, r.YH} {
		binary.LittleEndian.PutUint32(params[16+4*i:], math.Float32bits(v))
	}
	bufParams := e.uniform(params)
	defer bufParams.Release()

	e.dispatch("move_boundary", moveBoundaryShader, n, bufPos, bufSX, bufSY, bufParams)
	return e.read(bufPos, pos)
}

func (e *webgpuEngine) lseParams(ctx *backend.LogSumExpContext[float32], gradOut float32) gpuBuffer {
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:], uint32(ctx.NumPins)) //nolint:gosec // G115
	binary.LittleEndian.PutUint32(params[4:], uint32(ctx.NumNets)) //nolint:gosec // G115
	binary.LittleEndian.PutUint32(params[8:], math.Float32bits(ctx.Gamma))
	binary.LittleEndian.PutUint32(params[12:], math.Float32bits(gradOut))
	return e.uniform(params)
}

func (e *webgpuEngine) logSumExpForward(ctx *backend.LogSumExpContext[float32], pos []float32, nets *placedb.NetIndex) error {
	np, nn := ctx.NumPins, ctx.NumNets
	if nn == 0 {
		return nil
	}
	bufParams := e.lseParams(ctx, 0)
	defer bufParams.Release()
	bufPos := e.storage(f32Bytes(pos))
	defer bufPos.Release()
	bufPin2Net, bufFlat, bufStart := e.cachedIndex(nets)
	bufMask := e.storage(maskBytes(nets.NetMask))
	defer bufMask.Release()
	bufExps := e.storage(make([]byte, 16*np))
	defer bufExps.Release()
	bufSums := e.storage(make([]byte, 16*nn))
	defer bufSums.Release()
	bufValue := e.storage(make([]byte, 4*nn))
	defer bufValue.Release()

	if ctx.Algorithm == backend.Atomic {
		e.dispatch("logsumexp.atomic", lseAtomicShader, np, bufPos, bufPin2Net, bufMask, bufExps, bufSums, bufParams)
		e.dispatch("logsumexp.finish", lseFinishShader, nn, bufMask, bufSums, bufValue, bufParams)
	} else {
		e.dispatch("logsumexp.exp", lseExpShader, np, bufPos, bufPin2Net, bufMask, bufExps, bufParams)
		e.dispatch("logsumexp.reduce", lseReduceShader, nn, bufFlat, bufStart, bufMask, bufExps, bufSums, bufValue, bufParams)
	}

	exps := make([]float32, 4*np)
	sums := make([]float32, 4*nn)
	if err := e.read(bufExps, exps); err != nil {
		return err
	}
	if err := e.read(bufSums, sums); err != nil {
		return err
	}
	if err := e.read(bufValue, ctx.NetValue); err != nil {
		return err
	}
	copy(ctx.ExpXY, exps[:2*np])
	copy(ctx.ExpNXY, exps[2*np:])
	copy(ctx.ExpXYSum, sums[:2*nn])
	copy(ctx.ExpNXYSum, sums[2*nn:])
	return nil
}

func (e *webgpuEngine) logSumExpBackward(ctx *backend.LogSumExpContext[float32], nets *placedb.NetIndex, gradOut float32, grad []float32) error {
	np := ctx.NumPins
	if np == 0 {
		return nil
	}
	bufParams := e.lseParams(ctx, gradOut)
	defer bufParams.Release()
	bufPin2Net, _, _ := e.cachedIndex(nets)
	bufMask := e.storage(maskBytes(nets.NetMask))
	defer bufMask.Release()
	bufExps := e.storage(append(f32Bytes(ctx.ExpXY), f32Bytes(ctx.ExpNXY)...))
	defer bufExps.Release()
	bufSums := e.storage(append(f32Bytes(ctx.ExpXYSum), f32Bytes(ctx.ExpNXYSum)...))
	defer bufSums.Release()
	bufGrad := e.storage(make([]byte, 8*np))
	defer bufGrad.Release()

	e.dispatch("logsumexp.grad", lseGradShader, np, bufPin2Net, bufMask, bufExps, bufSums, bufGrad, bufParams)
	return e.read(bufGrad, grad)
}

func (e *webgpuEngine) release() {
	e.static.clear()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pipelines {
		p.Release()
	}
	for _, s := range e.shaders {
		s.Release()
	}
	e.pipelines, e.shaders = nil, nil
	e.queue.Release()
	e.device.Release()
	e.adapter.Release()
	e.instance.Release()
}

func f32Bytes(s []float32) []byte {
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func i32Bytes(s []int32) []byte {
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(v)) //nolint:gosec // G115: bit reinterpretation
	}
	return out
}

// maskBytes widens the uint8 net mask to the u32 array WGSL requires.
func maskBytes(mask []uint8) []byte {
	out := make([]byte, 4*len(mask))
	for i, v := range mask {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
	}
	return out
}
