package gbuffer_test

import (
	"testing"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/gbuffer"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, size common.Size) (gbuffer.Provider, renderer.Renderer, *renderertest.Backend) {
	t.Helper()
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	p, err := gbuffer.NewProvider(r, size, nil)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, r, backend
}

func TestNewProviderDefaultScheme(t *testing.T) {
	p, _, backend := newProvider(t, common.Size{Width: 640, Height: 480})

	assert.Equal(t, 4, p.ColorAttachmentCount())
	assert.Equal(t, 4, backend.Created(renderer.KindTexture))
	assert.Equal(t, 1, backend.Created(renderer.KindBindGroup))

	g, err := p.GBuffer()
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	assert.Len(t, g.ColorAttachments(), 4)
	for i, format := range gbuffer.DefaultFormats {
		tex := p.ColorAttachment(i)
		assert.Equal(t, format, tex.Format())
		assert.Equal(t, uint32(640), tex.Width())
		assert.Equal(t, gbuffer.Usage, tex.Usage())
	}
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	p, _, backend := newProvider(t, common.Size{Width: 640, Height: 480})
	changes := 0
	p.OnChanged(func(*gbuffer.GBuffer) { changes++ })

	require.NoError(t, p.Resize(common.Size{Width: 800, Height: 600}))
	require.NoError(t, p.Resize(common.Size{Width: 800, Height: 600}))

	assert.Equal(t, 1, changes)
	assert.Equal(t, 8, backend.Created(renderer.KindTexture))
	assert.Equal(t, 4, backend.Destroyed(renderer.KindTexture))
	assert.Equal(t, 1, backend.Destroyed(renderer.KindBindGroup))
	assert.Equal(t, 4, p.ColorAttachmentCount())
	assert.Equal(t, common.Size{Width: 800, Height: 600}, p.Size())
	assert.Empty(t, backend.DoubleDestroys())
}

func TestResizeZeroIsIgnored(t *testing.T) {
	p, _, backend := newProvider(t, common.Size{Width: 640, Height: 480})
	require.NoError(t, p.Resize(common.Size{}))
	assert.Equal(t, 4, backend.Created(renderer.KindTexture))
}

func TestChangedSeesCompleteGBuffer(t *testing.T) {
	p, _, _ := newProvider(t, common.Size{Width: 640, Height: 480})
	old, err := p.GBuffer()
	require.NoError(t, err)

	var seen *gbuffer.GBuffer
	p.OnChanged(func(g *gbuffer.GBuffer) {
		seen = g
		assert.NoError(t, g.Validate())
		assert.Equal(t, 4, g.ColorAttachmentCount())
		current, err := p.GBuffer()
		assert.NoError(t, err)
		assert.Same(t, g, current)
	})
	require.NoError(t, p.Resize(common.Size{Width: 1024, Height: 768}))
	require.NotNil(t, seen)
	assert.ErrorIs(t, old.Validate(), renderer.ErrUseAfterFree)
}

func TestResizeFailureKeepsPrevious(t *testing.T) {
	p, _, backend := newProvider(t, common.Size{Width: 640, Height: 480})
	before, err := p.GBuffer()
	require.NoError(t, err)
	changes := 0
	p.OnChanged(func(*gbuffer.GBuffer) { changes++ })

	// every texture of the replacement succeeds, its bind group fails
	backend.FailNext(renderer.KindBindGroup, 1)

	err = p.Resize(common.Size{Width: 1024, Height: 768})
	var ce *renderer.CreationError
	require.ErrorAs(t, err, &ce)

	after, err := p.GBuffer()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.NoError(t, after.Validate())
	assert.Zero(t, changes)
	assert.Equal(t, 4, backend.Live(renderer.KindTexture))
	assert.Equal(t, 1, backend.Live(renderer.KindBindGroup))
	assert.Equal(t, 8, backend.Created(renderer.KindTexture))
	assert.Empty(t, backend.DoubleDestroys())
}

func TestObserveInvokesImmediately(t *testing.T) {
	p, _, _ := newProvider(t, common.Size{Width: 640, Height: 480})
	var sizes []common.Size
	unsubscribe := p.Observe(func(g *gbuffer.GBuffer) { sizes = append(sizes, g.Size()) })

	require.NoError(t, p.Resize(common.Size{Width: 320, Height: 240}))
	unsubscribe()
	require.NoError(t, p.Resize(common.Size{Width: 100, Height: 100}))

	assert.Equal(t, []common.Size{{Width: 640, Height: 480}, {Width: 320, Height: 240}}, sizes)
}

func TestCloseReleasesEverything(t *testing.T) {
	p, r, backend := newProvider(t, common.Size{Width: 640, Height: 480})
	p.Close()
	p.Close()

	assert.Zero(t, backend.Live(renderer.KindTexture))
	assert.Zero(t, backend.Live(renderer.KindBindGroup))
	assert.Zero(t, backend.Live(renderer.KindBindGroupLayout))
	assert.Zero(t, r.LiveResources())

	_, err := p.GBuffer()
	assert.ErrorIs(t, err, gbuffer.ErrClosed)
	assert.ErrorIs(t, p.Resize(common.Size{Width: 1, Height: 1}), gbuffer.ErrClosed)
}

func TestCreateRejectsEmptyFormats(t *testing.T) {
	_, r, _ := newProvider(t, common.Size{Width: 8, Height: 8})
	_, err := gbuffer.Create(r, common.Size{Width: 8, Height: 8}, []gputypes.TextureFormat{}, nil)
	assert.ErrorIs(t, err, renderer.ErrInvalidDescriptor)
}
