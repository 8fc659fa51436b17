// Package window is the windowing/context collaborator of the shim: it
// supplies the drawable surface the GPU backend renders into and runs the
// platform message loop. The uniform-binding layer assumes a surface already
// exists before any shader, program, or uniform call.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gnaghi/SwitchGLES-sub001/common"
)

// shimWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type shimWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// width and height are the current framebuffer dimensions in pixels.
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onResize is called when the framebuffer is resized.
	onResize func(width, height int)

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)

	// onKeyUp is called when a key is released.
	onKeyUp func(keyCode uint32)
}

// Window is the surface provider and message pump for one rendering context.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is
	// resized, receiving pixel dimensions.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating the backend surface. The descriptor is platform-appropriate
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

var _ Window = &shimWindow{}

// NewWindow creates a new Window with the specified options.
// Options run first; unset dimensions and title fall back to defaults.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window with its platform surface created
func NewWindow(options ...WindowBuilderOption) Window {
	w := &shimWindow{}
	for _, opt := range options {
		opt(w)
	}
	w.title = common.Coalesce(w.title, "GLES Shim")
	w.width = common.Coalesce(w.width, 1280)
	w.height = common.Coalesce(w.height, 720)

	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *shimWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *shimWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *shimWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *shimWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *shimWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *shimWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *shimWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *shimWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *shimWindow) Width() int {
	return w.width
}

func (w *shimWindow) Height() int {
	return w.height
}
