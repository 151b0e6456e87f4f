package light_test

import (
	"encoding/binary"
	"math"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/camera"
	"github.com/Carmen-Shannon/hikari/engine/light"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/Carmen-Shannon/hikari/engine/renderer/renderertest"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCascades(t *testing.T, opts ...light.LightBuilderOption) (light.CascadeSet, renderer.Renderer, *renderertest.Backend) {
	t.Helper()
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	l := light.NewDirectionalLight(opts...)
	s, err := light.NewCascadeSet(r, l, light.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, r, backend
}

func floats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestNewCascadeSetAllocatesPerCascade(t *testing.T) {
	s, _, backend := newCascades(t, light.WithShadowMap(2, 256))

	assert.Equal(t, 2, s.CascadeCount())
	assert.Equal(t, uint32(256), s.Resolution())
	assert.Equal(t, 2, backend.Created(renderer.KindTexture))
	assert.Equal(t, 2, backend.Created(renderer.KindRenderPipeline))
	// one pass group per cascade plus the lighting group
	assert.Equal(t, 3, backend.Created(renderer.KindBindGroup))

	for i := range 2 {
		tex := s.DepthTexture(i)
		assert.Equal(t, light.ShadowDepthFormat, tex.Format())
		assert.Equal(t, uint32(256), tex.Width())
		assert.True(t, s.Pipeline(i).DepthOnly())
	}
	assert.Len(t, s.LightingLayout().Entries(), light.BindingFirstCascade+2)
	require.NoError(t, s.LightingBindGroup().Validate())
}

func TestUpdateWritesIncreasingFars(t *testing.T) {
	s, _, backend := newCascades(t, light.WithShadowMap(3, 128), light.WithMaxShadowDistance(60))
	c := camera.NewCamera(camera.WithClip(0.5, 200))

	wrote, err := s.Update(c)
	require.NoError(t, err)
	assert.True(t, wrote)

	fars := s.Fars()
	require.Len(t, fars, 3)
	assert.Equal(t, float32(60), fars[2])
	for i := 1; i < len(fars); i++ {
		assert.Greater(t, fars[i], fars[i-1])
	}

	// the fars buffer holds the fars followed by the depth ranges; the lighting group binds it
	var farsBuffer *renderer.Buffer
	for _, b := range s.LightingBindGroup().Buffers() {
		if b.Label() == "cascade_fars" {
			farsBuffer = b
		}
	}
	require.NotNil(t, farsBuffer)
	written := floats(backend.Written(farsBuffer.Handle()))
	require.Len(t, written, 6)
	assert.Equal(t, fars, written[:3])
	assert.Equal(t, s.DepthRanges(), written[3:])
	for _, r := range written[3:] {
		assert.Greater(t, r, float32(0))
	}
}

func TestUpdateSkipsWhenNothingChanged(t *testing.T) {
	s, _, _ := newCascades(t, light.WithShadowMap(2, 64))
	c := camera.NewCamera()

	wrote, err := s.Update(c)
	require.NoError(t, err)
	require.True(t, wrote)

	wrote, err = s.Update(c)
	require.NoError(t, err)
	assert.False(t, wrote)

	c.LookAt(common.Vec3{1, 2, 3}, common.Vec3{})
	wrote, err = s.Update(c)
	require.NoError(t, err)
	assert.True(t, wrote)

	s.Light().SetDirection(1, -1, 0)
	wrote, err = s.Update(c)
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestUpdateClampsToCameraFar(t *testing.T) {
	s, _, _ := newCascades(t, light.WithShadowMap(2, 64), light.WithMaxShadowDistance(500))
	_, err := s.Update(camera.NewCamera(camera.WithClip(0.1, 40)))
	require.NoError(t, err)
	assert.Equal(t, float32(40), s.Fars()[1])
}

func TestReconfigureSameIsNoop(t *testing.T) {
	s, _, backend := newCascades(t, light.WithShadowMap(2, 64))
	changes := 0
	s.OnChanged(func(light.CascadeSet) { changes++ })

	require.NoError(t, s.Reconfigure(2, 64))

	assert.Zero(t, changes)
	assert.Equal(t, 2, backend.Created(renderer.KindTexture))
}

func TestReconfigureRecreatesEverything(t *testing.T) {
	s, _, backend := newCascades(t, light.WithShadowMap(2, 64))
	_, err := s.Update(camera.NewCamera())
	require.NoError(t, err)
	oldTexture := s.DepthTexture(0)
	oldGroup := s.LightingBindGroup()

	var seen light.CascadeSet
	s.OnChanged(func(cs light.CascadeSet) {
		seen = cs
		assert.Equal(t, 3, cs.CascadeCount())
		assert.NoError(t, cs.LightingBindGroup().Validate())
	})
	require.NoError(t, s.Reconfigure(3, 128))

	require.NotNil(t, seen)
	assert.Equal(t, uint32(128), s.Resolution())
	assert.ErrorIs(t, oldTexture.Validate(), renderer.ErrUseAfterFree)
	assert.ErrorIs(t, oldGroup.Validate(), renderer.ErrUseAfterFree)
	assert.Equal(t, 3, backend.Live(renderer.KindTexture))
	assert.Equal(t, 3, backend.Live(renderer.KindRenderPipeline))
	assert.Empty(t, backend.DoubleDestroys())

	// the fitted state belongs to the old cascade count
	assert.Nil(t, s.Fars())
	wrote, err := s.Update(camera.NewCamera())
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Len(t, s.Fars(), 3)
}

func TestReconfigureFailureKeepsPrevious(t *testing.T) {
	s, _, backend := newCascades(t, light.WithShadowMap(2, 64))
	before := s.DepthTexture(1)

	backend.FailNext(renderer.KindRenderPipeline, 1)
	err := s.Reconfigure(4, 64)

	var ce *renderer.CreationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, s.CascadeCount())
	assert.Same(t, before, s.DepthTexture(1))
	assert.NoError(t, before.Validate())
	assert.Equal(t, 2, backend.Live(renderer.KindTexture))
	assert.Empty(t, backend.DoubleDestroys())
}

func TestNewCascadeSetFailureReleasesPartialResources(t *testing.T) {
	backend := renderertest.NewBackend()
	r, err := renderer.NewRenderer(backend)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	backend.FailNext(renderer.KindBindGroupLayout, 1)
	_, err = light.NewCascadeSet(r, light.NewDirectionalLight())
	require.Error(t, err)
	assert.Zero(t, r.LiveResources())
}

func TestCloseReleasesEverything(t *testing.T) {
	baseline := runtime.NumGoroutine()
	s, r, backend := newCascades(t)
	_, err := s.Update(camera.NewCamera())
	require.NoError(t, err)
	require.Greater(t, runtime.NumGoroutine(), baseline)

	s.Close()
	s.Close()

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.LiveResources())
	assert.Empty(t, backend.DoubleDestroys())
	_, err = s.Update(camera.NewCamera())
	assert.ErrorIs(t, err, light.ErrClosed)
	assert.ErrorIs(t, s.Reconfigure(1, 64), light.ErrClosed)
}

func TestShaderSourceDeclaresEveryCascade(t *testing.T) {
	s, _, _ := newCascades(t, light.WithShadowMap(3, 512))

	src, err := s.ShaderSource(3)
	require.NoError(t, err)

	assert.Contains(t, src, "@group(3) @binding(0) var<uniform> dir_light: DirectionalLight;")
	for i, binding := range []string{"4", "5", "6"} {
		assert.Contains(t, src, "@group(3) @binding("+binding+") var shadow_map_"+string(rune('0'+i))+": texture_depth_2d;")
	}
	assert.NotContains(t, src, "shadow_map_3")
	assert.Contains(t, src, "i32(512)")
	assert.True(t, strings.Contains(src, "fn shadow_visibility("))
}

func TestGPUDirectionalLightLayout(t *testing.T) {
	l := light.NewDirectionalLight(light.WithColor(1, 0.5, 0.25), light.WithPCF(false))
	g := light.ToGPUDirectionalLight(l, 4)

	data := g.Marshal()
	require.Len(t, data, g.Size())
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[32:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[36:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[40:]))
	assert.Equal(t, float32(0.5), floats(data[20:24])[0])
}

func TestLightVersionBumpsOnlyOnChange(t *testing.T) {
	l := light.NewDirectionalLight()
	v := l.Version()

	l.SetIntensity(l.Intensity())
	l.SetDirection(0, 0, 0)
	l.SetMaxShadowDistance(-1)
	assert.Equal(t, v, l.Version())

	l.SetDirection(0, -2, 0)
	assert.Equal(t, v, l.Version(), "same direction after normalizing")

	l.SetShadowMap(99, 0)
	assert.Equal(t, v+1, l.Version())
	assert.Equal(t, light.MaxCascadeCount, l.CascadeCount())
	assert.Equal(t, uint32(light.ShadowMapResolution), l.ShadowMapResolution())

	l.SetColor(0, 1, 0)
	assert.Equal(t, v+2, l.Version())
	assert.Equal(t, gputypes.TextureFormatDepth32Float, light.ShadowDepthFormat)
}
