package gbuffer

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// ErrClosed is returned by a Provider after Close.
var ErrClosed = errors.New("gbuffer: provider closed")

// provider is the implementation of the Provider interface.
type provider struct {
	mu      *sync.Mutex
	r       renderer.Renderer
	formats []gputypes.TextureFormat
	layout  own.Own[*renderer.BindGroupLayout]
	current own.Own[*GBuffer]
	closed  bool

	changed common.Event[*GBuffer]
	logger  *slog.Logger
}

// Provider keeps one G-buffer matching the surface size and replaces it as a whole on resize.
type Provider interface {
	// GBuffer returns the current G-buffer. Consumers must not keep it across a Changed notification.
	//
	// Returns:
	//   - *GBuffer: the current G-buffer
	//   - error: ErrClosed after Close
	GBuffer() (*GBuffer, error)

	// Formats returns a copy of the target formats.
	Formats() []gputypes.TextureFormat

	// Layout returns the bind group layout of every G-buffer this provider creates.
	Layout() *renderer.BindGroupLayout

	// Size returns the current G-buffer size, or the zero size after Close.
	Size() common.Size

	// ColorAttachment returns target i of the current G-buffer.
	ColorAttachment(i int) *renderer.Texture

	// ColorAttachmentCount returns the number of targets.
	ColorAttachmentCount() int

	// Resize replaces the G-buffer with one of the given size. Resizing to the current size or to a zero size
	// does nothing. The replacement is fully built before it is swapped in; on failure the old G-buffer stays
	// current and the error is returned. Changed subscribers run after the swap, on the calling goroutine.
	//
	// Parameters:
	//   - size: the new size
	//
	// Returns:
	//   - error: a *renderer.CreationError, or ErrClosed
	Resize(size common.Size) error

	// OnChanged subscribes to G-buffer replacement.
	//
	// Parameters:
	//   - fn: receives the new G-buffer
	//
	// Returns:
	//   - func(): unsubscribes fn
	OnChanged(fn func(*GBuffer)) func()

	// Observe invokes fn with the current G-buffer and then subscribes it to changes.
	Observe(fn func(*GBuffer)) func()

	// Close releases the current G-buffer and the layout. Further calls are no-ops.
	Close()
}

var _ Provider = &provider{}

// NewProvider creates a Provider and its first G-buffer.
//
// Parameters:
//   - r: the renderer context
//   - size: the initial size
//   - formats: one format per target; nil selects DefaultFormats
//   - options: variadic list of ProviderBuilderOption functions to configure the Provider
//
// Returns:
//   - Provider: the new provider
//   - error: a *renderer.CreationError if the first G-buffer could not be created
func NewProvider(r renderer.Renderer, size common.Size, formats []gputypes.TextureFormat, options ...ProviderBuilderOption) (Provider, error) {
	if formats == nil {
		formats = DefaultFormats
	}
	p := &provider{
		mu:      &sync.Mutex{},
		r:       r,
		formats: slices.Clone(formats),
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = p.logger.With("component", "gbuffer")

	layout, err := r.CreateBindGroupLayout(LayoutDescriptor(p.formats))
	if err != nil {
		return nil, err
	}
	p.layout = layout

	g, err := Create(r, size, p.formats, layout.MustValue())
	if err != nil {
		layout.Dispose()
		return nil, err
	}
	p.current = g
	return p, nil
}

func (p *provider) GBuffer() (*GBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	return p.current.AsValue()
}

func (p *provider) Formats() []gputypes.TextureFormat {
	return slices.Clone(p.formats)
}

func (p *provider) Layout() *renderer.BindGroupLayout {
	return p.layout.MustValue()
}

func (p *provider) Size() common.Size {
	g, err := p.GBuffer()
	if err != nil {
		return common.Size{}
	}
	return g.Size()
}

func (p *provider) ColorAttachment(i int) *renderer.Texture {
	g, err := p.GBuffer()
	if err != nil {
		panic(err)
	}
	return g.ColorAttachment(i)
}

func (p *provider) ColorAttachmentCount() int {
	return len(p.formats)
}

func (p *provider) Resize(size common.Size) error {
	if size.IsZero() {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if g, ok := p.current.TryAsValue(); ok && g.Size() == size {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	next, err := Create(p.r, size, p.formats, p.layout.MustValue())
	if err != nil {
		p.logger.Error("resize failed, keeping previous gbuffer", "width", size.Width, "height", size.Height, "error", err)
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		next.Dispose()
		return ErrClosed
	}
	old := p.current
	p.current = next
	g := next.MustValue()
	p.mu.Unlock()

	old.Dispose()
	p.logger.Debug("gbuffer resized", "width", size.Width, "height", size.Height)
	p.changed.Invoke(p.logger, "gbuffer_changed", g)
	return nil
}

func (p *provider) OnChanged(fn func(*GBuffer)) func() {
	return p.changed.Subscribe(fn)
}

func (p *provider) Observe(fn func(*GBuffer)) func() {
	if fn == nil {
		return func() {}
	}
	if g, err := p.GBuffer(); err == nil {
		common.Guard(p.logger, "gbuffer_observe", func() { fn(g) })
	}
	return p.changed.Subscribe(fn)
}

func (p *provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	current := p.current
	p.current = own.None[*GBuffer]()
	p.mu.Unlock()

	current.Dispose()
	p.layout.Dispose()
	p.changed.Clear()
}
