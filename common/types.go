package common

// Size is a pixel extent.
type Size struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, as happens while a window is minimized.
func (s Size) IsZero() bool {
	return s.Width == 0 || s.Height == 0
}

// Aspect returns width / height, or 1 for a zero size.
func (s Size) Aspect() float32 {
	if s.IsZero() {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}
