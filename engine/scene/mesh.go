package scene

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/hikari/common"
	"github.com/Carmen-Shannon/hikari/engine/own"
	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
)

// ErrEmptyMesh is returned by NewMesh when there is nothing to draw.
var ErrEmptyMesh = errors.New("scene: mesh has no vertices or indices")

// Mesh is indexed triangle geometry uploaded to the GPU. A Mesh owns its vertex and index buffers and may be
// drawn by any number of objects, which borrow it through own.Borrowed.
type Mesh struct {
	label      string
	vertices   own.Own[*renderer.Buffer]
	indices    own.Own[*renderer.Buffer]
	indexCount uint32
	bounds     common.Sphere
}

// NewMesh uploads vertices and indices into new GPU buffers.
//
// Parameters:
//   - r: the renderer context
//   - label: the mesh name, used for the buffer labels
//   - vertices: the vertex data
//   - indices: triangle list indices into vertices
//
// Returns:
//   - own.Own[*Mesh]: the owned mesh; disposing it releases both buffers
//   - error: ErrEmptyMesh, an out of range index, or a *renderer.CreationError
func NewMesh(r renderer.Renderer, label string, vertices []GPUVertex, indices []uint32) (own.Own[*Mesh], error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return own.None[*Mesh](), fmt.Errorf("%q: %w", label, ErrEmptyMesh)
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return own.None[*Mesh](), fmt.Errorf("scene: mesh %q: index %d out of range (%d vertices)", label, idx, len(vertices))
		}
	}

	vb, err := r.CreateBuffer(renderer.BufferDescriptor{
		Label:    label + "_vertices",
		Usage:    gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		Contents: MarshalVertices(vertices),
	})
	if err != nil {
		return own.None[*Mesh](), err
	}
	ib, err := r.CreateBuffer(renderer.BufferDescriptor{
		Label:    label + "_indices",
		Usage:    gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		Contents: MarshalIndices(indices),
	})
	if err != nil {
		vb.Dispose()
		return own.None[*Mesh](), err
	}

	m := &Mesh{
		label:      label,
		vertices:   vb,
		indices:    ib,
		indexCount: uint32(len(indices)),
		bounds:     boundingSphere(vertices),
	}
	return own.New(m, func(m *Mesh) { m.release() }), nil
}

// Label returns the mesh name.
func (m *Mesh) Label() string {
	return m.label
}

// IndexCount returns the number of indices drawn.
func (m *Mesh) IndexCount() uint32 {
	return m.indexCount
}

// Bounds returns the model-space bounding sphere.
func (m *Mesh) Bounds() common.Sphere {
	return m.bounds
}

// VertexBuffer returns the vertex buffer.
func (m *Mesh) VertexBuffer() *renderer.Buffer {
	return m.vertices.MustValue()
}

// IndexBuffer returns the index buffer.
func (m *Mesh) IndexBuffer() *renderer.Buffer {
	return m.indices.MustValue()
}

// Draw binds the mesh buffers at vertex slot 0 and records one indexed draw.
//
// Parameters:
//   - pass: the open render pass
func (m *Mesh) Draw(pass *renderer.RenderPass) {
	pass.SetVertexBuffer(0, m.vertices.MustValue())
	pass.SetIndexBuffer(m.indices.MustValue())
	pass.DrawIndexed(m.indexCount, 1)
}

func (m *Mesh) release() {
	m.indices.Dispose()
	m.vertices.Dispose()
}

// boundingSphere centers the sphere on the AABB and grows it to the farthest vertex.
func boundingSphere(vertices []GPUVertex) common.Sphere {
	points := make([]common.Vec3, len(vertices))
	for i := range vertices {
		points[i] = vertices[i].Position
	}
	lo, hi := common.Bounds(points)
	center := lo.Add(hi).Scale(0.5)
	var radius float32
	for _, p := range points {
		radius = math32.Max(radius, p.Sub(center).Length())
	}
	return common.Sphere{Center: center, Radius: radius}
}
