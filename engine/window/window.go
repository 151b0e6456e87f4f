// Package window is the platform window boundary: it creates the GLFW window the WebGPU surface is attached to
// and forwards resize, refresh and close-request events to the engine.
package window

import (
	"fmt"
	"log/slog"
	"sync"
)

// Window provides the platform window and its events.
// Every method must be called from the goroutine that created the window.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels (or nil to disable)
	SetResizeCallback(callback func(width, height int))

	// SetCloseRequestCallback sets the function called when the user asks the window to close, either with
	// the title bar close button or the Escape key. When a callback is set the window stays open until
	// Close is called, so the callback can veto. Without one the window closes immediately.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetCloseRequestCallback(callback func())

	// SetRefreshCallback sets the function called when the window contents need redrawing outside the
	// normal frame loop, for example while the user drags the window edge.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetRefreshCallback(callback func())

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	SurfaceDescriptor() SurfaceDescriptor

	// IsRunning returns true while the window is open.
	IsRunning() bool

	// PollEvents processes pending platform events without blocking and dispatches the callbacks.
	//
	// Returns:
	//   - bool: false once the window has closed
	PollEvents() bool

	// Close destroys the window and releases platform resources. Safe to call more than once.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, platform state, and event callbacks.
type engineWindow struct {
	title     string
	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int
	width     int
	height    int
	logger    *slog.Logger

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow platformWindow

	onResize       func(width, height int)
	onCloseRequest func()
	onRefresh      func()

	closeOnce sync.Once
	closeErr  error
}

// platformWindow is implemented by each platform backend.
type platformWindow interface {
	surfaceDescriptor() SurfaceDescriptor
	shouldClose() bool
	setShouldClose(bool)
	poll()
	destroy()
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window with the specified options.
// Applies default values first, then each option in order. Panics if the platform window cannot be
// created, since nothing can render without one.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "hikari",
		maxWidth:  -1,
		maxHeight: -1,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(w)
	}
	w.logger = w.logger.With("component", "window")
	return w
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetCloseRequestCallback(callback func()) {
	w.onCloseRequest = callback
}

func (w *engineWindow) SetRefreshCallback(callback func()) {
	w.onRefresh = callback
}

func (w *engineWindow) SurfaceDescriptor() SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	return w.internalWindow.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.internalWindow != nil && !w.internalWindow.shouldClose()
}

func (w *engineWindow) PollEvents() bool {
	if !w.IsRunning() {
		return false
	}
	w.internalWindow.poll()
	return w.IsRunning()
}

func (w *engineWindow) Close() error {
	w.closeOnce.Do(func() {
		if w.internalWindow == nil {
			w.closeErr = fmt.Errorf("window is not initialized")
			return
		}
		w.internalWindow.setShouldClose(true)
		w.internalWindow.destroy()
		w.logger.Debug("window closed")
	})
	return w.closeErr
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

// handleResize records the new framebuffer size and forwards it. Minimized windows report 0x0, which is
// forwarded as is.
func (w *engineWindow) handleResize(width, height int) {
	w.width = width
	w.height = height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

// handleCloseRequest forwards a close request. With a callback set the platform close flag is cleared so
// the window stays open until the engine decides.
func (w *engineWindow) handleCloseRequest() {
	if w.onCloseRequest == nil {
		w.internalWindow.setShouldClose(true)
		return
	}
	w.internalWindow.setShouldClose(false)
	w.onCloseRequest()
}

func (w *engineWindow) handleRefresh() {
	if w.onRefresh != nil {
		w.onRefresh()
	}
}
