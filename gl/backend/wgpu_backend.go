package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
)

// entryPointName is the entry point the offline toolchain emits for every
// stage binary.
const entryPointName = "main"

// wgpuPipeline pairs the capability set with the GPU objects backing it: the
// render pipeline, one uniform buffer per declared slot, and one bind group
// per stage (group 0 vertex, group 1 fragment).
type wgpuPipeline struct {
	capabilitySet
	renderPipeline *wgpu.RenderPipeline
	buffers        map[common.Stage]map[int]*wgpu.Buffer
	bindGroups     [2]*wgpu.BindGroup
}

var _ Pipeline = &wgpuPipeline{}

func (p *wgpuPipeline) Raw() any {
	return p.renderPipeline
}

// wgpuBackend is the WebGPU implementation of the Backend interface.
type wgpuBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	renderPassDescriptor *wgpu.RenderPassDescriptor
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool

	// Frame state. Draws are batched into one submission per segment; a
	// constant write arriving after a recorded draw closes the segment so the
	// queue ordering of WriteBuffer cannot leak later values into it.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	segmentDraws int
}

var _ Backend = &wgpuBackend{}

// NewWGPU creates the WebGPU backend for an already-created window surface and
// configures it for the given size. Device acquisition failures are fatal;
// that boundary is owned by the driver, not this layer.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window layer
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//   - options: a variadic list of options to configure the backend
//
// Returns:
//   - Backend: a new WebGPU backend instance
func NewWGPU(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...WGPUBackendOption) Backend {
	runtime.LockOSThread()
	b := &wgpuBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	for _, opt := range options {
		opt(b)
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "GLES Shim Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	b.configureSurface(width, height)
	return b
}

func (b *wgpuBackend) configureSurface(width, height int) {
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    nil, // set per-frame to the swapchain view
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: 0.1, G: 0.1, B: 0.1, A: 1.0,
				},
			},
		},
	}
}

func (b *wgpuBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configureSurface(width, height)
}

func (b *wgpuBackend) CreatePipeline(label string, vertex, fragment *shader.Binary) (Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if vertex == nil || fragment == nil {
		return nil, errors.New("backend: both vertex and fragment binaries must be set to create a pipeline")
	}

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label + " Vertex",
		SPIRVDescriptor: &wgpu.ShaderModuleSPIRVDescriptor{
			Code: vertex.SPIRV,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("backend: vertex module rejected: %w", err)
	}
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label + " Fragment",
		SPIRVDescriptor: &wgpu.ShaderModuleSPIRVDescriptor{
			Code: fragment.SPIRV,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("backend: fragment module rejected: %w", err)
	}

	p := &wgpuPipeline{
		capabilitySet: newCapabilitySet(label, vertex, fragment),
		buffers:       make(map[common.Stage]map[int]*wgpu.Buffer, 2),
	}

	// One bind group per stage: group 0 holds the vertex stage's constant
	// buffers, group 1 the fragment stage's, with binding numbers taken
	// verbatim from the binary's binding table.
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, 2)
	for gi, stage := range []common.Stage{common.StageVertex, common.StageFragment} {
		visibility := wgpu.ShaderStageVertex
		if stage == common.StageFragment {
			visibility = wgpu.ShaderStageFragment
		}

		decls := p.bindings[stage]
		layoutEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(decls))
		groupEntries := make([]wgpu.BindGroupEntry, 0, len(decls))
		p.buffers[stage] = make(map[int]*wgpu.Buffer, len(decls))

		for _, d := range decls {
			buf, bufErr := b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s %s binding %d", label, stage, d.Slot),
				Size:  uint64(d.Size),
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if bufErr != nil {
				return nil, fmt.Errorf("backend: failed to create constant buffer for %s binding %d: %w", stage, d.Slot, bufErr)
			}
			p.buffers[stage][d.Slot] = buf

			layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
				Binding:    uint32(d.Slot),
				Visibility: visibility,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(d.Size),
				},
			})
			groupEntries = append(groupEntries, wgpu.BindGroupEntry{
				Binding: uint32(d.Slot),
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		}

		layout, layoutErr := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s %s layout", label, stage),
			Entries: layoutEntries,
		})
		if layoutErr != nil {
			return nil, fmt.Errorf("backend: failed to create bind group layout for %s stage: %w", stage, layoutErr)
		}
		bindGroupLayouts[gi] = layout

		group, groupErr := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s %s bind group", label, stage),
			Layout:  layout,
			Entries: groupEntries,
		})
		if groupErr != nil {
			return nil, fmt.Errorf("backend: failed to create bind group for %s stage: %w", stage, groupErr)
		}
		p.bindGroups[gi] = group
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, err
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: entryPointName,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: entryPointName,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	p.renderPipeline = created

	return p, nil
}

func (b *wgpuBackend) WriteConstants(p Pipeline, writes []ConstantWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wp, ok := p.(*wgpuPipeline)
	if !ok || len(writes) == 0 {
		return
	}
	// WriteBuffer executes before every draw of the submit it precedes, so
	// draws already recorded in this segment must be submitted first. Without
	// the split they would observe values written after they were issued.
	if b.framePass != nil && b.segmentDraws > 0 {
		b.splitFrame()
	}
	for _, w := range writes {
		buf := wp.buffers[w.Stage][w.Binding]
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

// splitFrame submits the draws recorded so far and opens a fresh render pass
// over the same surface view with LoadOpLoad, preserving their output. Called
// mid-frame only.
func (b *wgpuBackend) splitFrame() {
	b.framePass.End()
	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
	b.segmentDraws = 0

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return
	}
	b.renderPassDescriptor.ColorAttachments[0].LoadOp = wgpu.LoadOpLoad
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameEncoder = encoder
}

func (b *wgpuBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("backend: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.renderPassDescriptor.ColorAttachments[0].View = view
	b.renderPassDescriptor.ColorAttachments[0].LoadOp = wgpu.LoadOpClear
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.segmentDraws = 0
	return nil
}

func (b *wgpuBackend) Draw(p Pipeline, vertexCount, instanceCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errors.New("backend: draw outside of a frame")
	}
	wp, ok := p.(*wgpuPipeline)
	if !ok {
		return errors.New("backend: pipeline was not created by this backend")
	}
	if instanceCount < 1 {
		instanceCount = 1
	}

	b.framePass.SetPipeline(wp.renderPipeline)
	b.framePass.SetBindGroup(0, wp.bindGroups[0], nil)
	b.framePass.SetBindGroup(1, wp.bindGroups[1], nil)
	b.framePass.Draw(uint32(vertexCount), uint32(instanceCount), 0, 0)
	b.segmentDraws++
	return nil
}

func (b *wgpuBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.framePass = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
}

func (b *wgpuBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
