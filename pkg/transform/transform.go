// Package transform maps between image space, virtual canvas space and the
// visible scrolled screen space of the viewport.
package transform

import "errors"

const (
	MinScale = 0.05
	MaxScale = 8.0

	zoomStepIn  = 1.1
	zoomStepOut = 0.9

	fitPadding = 40.0
)

// ErrViewportUnmeasured is returned by FitToScreen while the viewport has no
// size yet; callers retry on the next frame.
var ErrViewportUnmeasured = errors.New("viewport has not been measured")

// Transform places the image origin in canvas space.
type Transform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Viewport is the scrollable window onto the canvas. Scroll offsets are
// owned by the viewport widget and fed in by the caller.
type Viewport struct {
	Width      float64
	Height     float64
	ScrollLeft float64
	ScrollTop  float64
}

// Engine owns the transform of the active document. It is reset whenever the
// image changes.
type Engine struct {
	t  Transform
	vp Viewport
}

func NewEngine() *Engine {
	return &Engine{t: Transform{Scale: 1}}
}

func (e *Engine) Transform() Transform { return e.t }

// SetTransform restores a persisted transform, clamping the scale.
func (e *Engine) SetTransform(t Transform) {
	t.Scale = clampScale(t.Scale)
	e.t = t
}

// Reset returns to the identity transform and scroll origin.
func (e *Engine) Reset() {
	e.t = Transform{Scale: 1}
	e.vp.ScrollLeft = 0
	e.vp.ScrollTop = 0
}

func (e *Engine) Viewport() Viewport { return e.vp }

// SetViewportSize records the measured viewport dimensions.
func (e *Engine) SetViewportSize(w, h float64) {
	e.vp.Width = w
	e.vp.Height = h
}

// SetScroll records the viewport scroll offset.
func (e *Engine) SetScroll(left, top float64) {
	e.vp.ScrollLeft = left
	e.vp.ScrollTop = top
}

// ScreenToImage converts a point in visible screen space to image space.
func (e *Engine) ScreenToImage(sx, sy float64) (float64, float64) {
	ix := (sx + e.vp.ScrollLeft - e.t.TranslateX) / e.t.Scale
	iy := (sy + e.vp.ScrollTop - e.t.TranslateY) / e.t.Scale
	return ix, iy
}

// ImageToScreen converts a point in image space to visible screen space.
func (e *Engine) ImageToScreen(ix, iy float64) (float64, float64) {
	sx := ix*e.t.Scale + e.t.TranslateX - e.vp.ScrollLeft
	sy := iy*e.t.Scale + e.t.TranslateY - e.vp.ScrollTop
	return sx, sy
}

// ZoomAt zooms in (delta > 0) or out (delta < 0) while keeping the image
// point under the cursor visually fixed: the translate is re-solved against
// the cursor's canvas position after the scale change.
func (e *Engine) ZoomAt(clientX, clientY, delta float64) {
	ix, iy := e.ScreenToImage(clientX, clientY)

	step := zoomStepOut
	if delta > 0 {
		step = zoomStepIn
	}
	newScale := clampScale(e.t.Scale * step)

	canvasX := clientX + e.vp.ScrollLeft
	canvasY := clientY + e.vp.ScrollTop
	e.t.TranslateX = canvasX - ix*newScale
	e.t.TranslateY = canvasY - iy*newScale
	e.t.Scale = newScale
}

// FitToScreen scales the image to fill the viewport with a fixed padding,
// centers it and resets the scroll to the origin. It fails with
// ErrViewportUnmeasured when the viewport has no size yet.
func (e *Engine) FitToScreen(imageW, imageH float64) error {
	if e.vp.Width <= 0 || e.vp.Height <= 0 {
		return ErrViewportUnmeasured
	}
	if imageW <= 0 || imageH <= 0 {
		return errors.New("image has no size")
	}

	availW := e.vp.Width - 2*fitPadding
	availH := e.vp.Height - 2*fitPadding
	if availW <= 0 || availH <= 0 {
		return ErrViewportUnmeasured
	}

	scale := clampScale(min(availW/imageW, availH/imageH))
	e.t.Scale = scale
	e.t.TranslateX = (e.vp.Width - imageW*scale) / 2
	e.t.TranslateY = (e.vp.Height - imageH*scale) / 2
	e.vp.ScrollLeft = 0
	e.vp.ScrollTop = 0
	return nil
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
