// Package renderertest provides an in-memory renderer.Backend for tests. It records every create, destroy
// and pass command so that ownership and ordering can be asserted without a GPU.
package renderertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/hikari/engine/renderer"
	"github.com/gogpu/gputypes"
)

// ErrInjected is returned by create calls that were set to fail with FailNext.
var ErrInjected = errors.New("renderertest: injected failure")

// Command is one recorded pass command.
type Command struct {
	Op     string
	Pass   string
	Handle renderer.Handle
	Index  uint32
	Count  uint32
}

// Backend is a thread-safe fake renderer.Backend.
type Backend struct {
	mu sync.Mutex

	next      renderer.Handle
	live      map[renderer.Handle]renderer.ResourceKind
	labels    map[renderer.Handle]string
	created   map[renderer.ResourceKind]int
	destroyed map[renderer.ResourceKind]int
	writes    map[renderer.Handle][]byte

	doubleDestroys []renderer.Handle
	failNext       map[renderer.ResourceKind]int

	surfaceErr  error
	width       uint32
	height      uint32
	configures  int
	presentMode renderer.PresentMode
	format      gputypes.TextureFormat

	frames   int
	presents int
	commands []Command
	released bool
}

var _ renderer.Backend = &Backend{}

// NewBackend returns an empty fake backend with a BGRA8Unorm surface.
func NewBackend() *Backend {
	return &Backend{
		live:      make(map[renderer.Handle]renderer.ResourceKind),
		labels:    make(map[renderer.Handle]string),
		created:   make(map[renderer.ResourceKind]int),
		destroyed: make(map[renderer.ResourceKind]int),
		writes:    make(map[renderer.Handle][]byte),
		failNext:  make(map[renderer.ResourceKind]int),
		format:    gputypes.TextureFormatBGRA8Unorm,
	}
}

// FailNext makes the next n create calls of kind fail with ErrInjected.
func (b *Backend) FailNext(kind renderer.ResourceKind, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[kind] = n
}

// SetSurfaceError makes AcquireFrame return err until it is cleared with nil.
func (b *Backend) SetSurfaceError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaceErr = err
}

func (b *Backend) create(kind renderer.ResourceKind, label string) (renderer.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return 0, fmt.Errorf("renderertest: create %s %q after release", kind, label)
	}
	if b.failNext[kind] > 0 {
		b.failNext[kind]--
		return 0, ErrInjected
	}
	b.next++
	b.live[b.next] = kind
	b.labels[b.next] = label
	b.created[kind]++
	return b.next, nil
}

func (b *Backend) alive(h renderer.Handle, kind renderer.ResourceKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if k, ok := b.live[h]; !ok || k != kind {
		return fmt.Errorf("renderertest: %s handle %d is not alive", kind, h)
	}
	return nil
}

func (b *Backend) CreateBuffer(desc *renderer.BufferDescriptor) (renderer.Handle, error) {
	if desc.Size == 0 || desc.Size%4 != 0 {
		return 0, fmt.Errorf("renderertest: invalid buffer size %d", desc.Size)
	}
	h, err := b.create(renderer.KindBuffer, desc.Label)
	if err != nil {
		return 0, err
	}
	if len(desc.Contents) > 0 {
		b.mu.Lock()
		b.writes[h] = append([]byte(nil), desc.Contents...)
		b.mu.Unlock()
	}
	return h, nil
}

func (b *Backend) CreateTexture(desc *renderer.TextureDescriptor) (renderer.Handle, error) {
	if desc.Size.Width == 0 || desc.Size.Height == 0 || desc.MipLevelCount == 0 || desc.SampleCount == 0 {
		return 0, fmt.Errorf("renderertest: invalid texture %q", desc.Label)
	}
	return b.create(renderer.KindTexture, desc.Label)
}

func (b *Backend) CreateSampler(desc *renderer.SamplerDescriptor) (renderer.Handle, error) {
	return b.create(renderer.KindSampler, desc.Label)
}

func (b *Backend) CreateShaderModule(desc *renderer.ShaderModuleDescriptor) (renderer.Handle, error) {
	if desc.Code == "" {
		return 0, fmt.Errorf("renderertest: empty shader %q", desc.Label)
	}
	return b.create(renderer.KindShaderModule, desc.Label)
}

func (b *Backend) CreateBindGroupLayout(desc *renderer.BindGroupLayoutDescriptor) (renderer.Handle, error) {
	if len(desc.Entries) == 0 {
		return 0, fmt.Errorf("renderertest: empty layout %q", desc.Label)
	}
	return b.create(renderer.KindBindGroupLayout, desc.Label)
}

func (b *Backend) CreateBindGroup(desc *renderer.BindGroupDescriptor) (renderer.Handle, error) {
	if err := b.alive(desc.Layout.Handle(), renderer.KindBindGroupLayout); err != nil {
		return 0, err
	}
	for _, e := range desc.Entries {
		var err error
		switch {
		case e.Buffer != nil:
			err = b.alive(e.Buffer.Handle(), renderer.KindBuffer)
		case e.Texture != nil:
			err = b.alive(e.Texture.Handle(), renderer.KindTexture)
		case e.Sampler != nil:
			err = b.alive(e.Sampler.Handle(), renderer.KindSampler)
		}
		if err != nil {
			return 0, err
		}
	}
	return b.create(renderer.KindBindGroup, desc.Label)
}

func (b *Backend) CreateRenderPipeline(desc *renderer.RenderPipelineDescriptor) (renderer.Handle, error) {
	if err := b.alive(desc.Vertex.Module.Handle(), renderer.KindShaderModule); err != nil {
		return 0, err
	}
	return b.create(renderer.KindRenderPipeline, desc.Label)
}

func (b *Backend) Destroy(kind renderer.ResourceKind, h renderer.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k, ok := b.live[h]
	if !ok || k != kind {
		b.doubleDestroys = append(b.doubleDestroys, h)
		return
	}
	delete(b.live, h)
	b.destroyed[kind]++
}

func (b *Backend) WriteBuffer(h renderer.Handle, offset uint64, data []byte) error {
	if err := b.alive(h, renderer.KindBuffer); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.writes[h]
	if need := int(offset) + len(data); need > len(cur) {
		grown := make([]byte, need)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], data)
	b.writes[h] = cur
	return nil
}

func (b *Backend) ConfigureSurface(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
	b.configures++
	return nil
}

func (b *Backend) SetPresentMode(mode renderer.PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *Backend) SurfaceFormat() gputypes.TextureFormat {
	return b.format
}

func (b *Backend) AcquireFrame() (renderer.BackendFrame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surfaceErr != nil {
		return nil, b.surfaceErr
	}
	b.frames++
	return &frame{b: b}, nil
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Created returns how many resources of kind were created.
func (b *Backend) Created(kind renderer.ResourceKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created[kind]
}

// Destroyed returns how many resources of kind were destroyed.
func (b *Backend) Destroyed(kind renderer.ResourceKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed[kind]
}

// Live returns the number of live handles of kind.
func (b *Backend) Live(kind renderer.ResourceKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, k := range b.live {
		if k == kind {
			n++
		}
	}
	return n
}

// IsLive reports whether h is alive.
func (b *Backend) IsLive(h renderer.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.live[h]
	return ok
}

// Label returns the label a handle was created with.
func (b *Backend) Label(h renderer.Handle) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.labels[h]
}

// DoubleDestroys returns every handle passed to Destroy while not alive.
func (b *Backend) DoubleDestroys() []renderer.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]renderer.Handle(nil), b.doubleDestroys...)
}

// Written returns the bytes last written to a buffer.
func (b *Backend) Written(h renderer.Handle) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.writes[h]...)
}

// SurfaceSize returns the last configured surface size and how many times it was configured.
func (b *Backend) SurfaceSize() (width, height uint32, configures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height, b.configures
}

// Frames returns how many frames were acquired and presented.
func (b *Backend) Frames() (acquired, presented int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames, b.presents
}

// Commands returns every recorded pass command in order.
func (b *Backend) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.commands...)
}

// PassLabels returns the label of every pass begun, in order.
func (b *Backend) PassLabels() []string {
	var out []string
	for _, c := range b.Commands() {
		if c.Op == "begin" {
			out = append(out, c.Pass)
		}
	}
	return out
}

// ResetCommands clears the recorded commands.
func (b *Backend) ResetCommands() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = nil
}

// Released reports whether Release was called.
func (b *Backend) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func (b *Backend) record(c Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, c)
}

type frame struct {
	b         *Backend
	submitted bool
}

func (f *frame) BeginPass(desc *renderer.PassDescriptor) (renderer.BackendPass, error) {
	for _, c := range desc.Colors {
		if c.Target != nil {
			if err := f.b.alive(c.Target.Handle(), renderer.KindTexture); err != nil {
				return nil, err
			}
		}
	}
	if desc.Depth != nil {
		if err := f.b.alive(desc.Depth.Target.Handle(), renderer.KindTexture); err != nil {
			return nil, err
		}
	}
	f.b.record(Command{Op: "begin", Pass: desc.Label})
	return &pass{b: f.b, label: desc.Label}, nil
}

func (f *frame) Submit() error {
	f.submitted = true
	f.b.record(Command{Op: "submit"})
	return nil
}

func (f *frame) Present() error {
	if !f.submitted {
		return errors.New("renderertest: present before submit")
	}
	f.b.mu.Lock()
	f.b.presents++
	f.b.mu.Unlock()
	f.b.record(Command{Op: "present"})
	return nil
}

type pass struct {
	b     *Backend
	label string
}

func (p *pass) SetPipeline(h renderer.Handle) {
	p.b.record(Command{Op: "pipeline", Pass: p.label, Handle: h})
}

func (p *pass) SetBindGroup(index uint32, h renderer.Handle) {
	p.b.record(Command{Op: "bindgroup", Pass: p.label, Handle: h, Index: index})
}

func (p *pass) SetVertexBuffer(slot uint32, h renderer.Handle) {
	p.b.record(Command{Op: "vertex", Pass: p.label, Handle: h, Index: slot})
}

func (p *pass) SetIndexBuffer(h renderer.Handle) {
	p.b.record(Command{Op: "index", Pass: p.label, Handle: h})
}

func (p *pass) Draw(vertexCount, instanceCount uint32) {
	p.b.record(Command{Op: "draw", Pass: p.label, Count: vertexCount, Index: instanceCount})
}

func (p *pass) DrawIndexed(indexCount, instanceCount uint32) {
	p.b.record(Command{Op: "drawindexed", Pass: p.label, Count: indexCount, Index: instanceCount})
}

func (p *pass) End() error {
	p.b.record(Command{Op: "end", Pass: p.label})
	return nil
}
