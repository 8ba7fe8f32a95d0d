// Package hittest resolves pointer positions against annotations: body hits,
// resize handles and marquee selection. All inputs are in image space; the
// caller converts screen coordinates through the transform engine first.
package hittest

import (
	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// HandleScreenPx is the pick radius of a resize handle, in screen pixels;
// it is divided by the current scale to get the image-space radius.
const HandleScreenPx = 8.0

// Handle identifies one of the eight resize handles.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
)

// handleOrder fixes the tie-break when the cursor is near several handles.
var handleOrder = []Handle{
	HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW,
}

// HandlePoint returns the image-space position of handle h on rect r.
func HandlePoint(r annotation.Rect, h Handle) (float64, float64) {
	midX := r.X + r.W/2
	midY := r.Y + r.H/2
	switch h {
	case HandleNW:
		return r.X, r.Y
	case HandleN:
		return midX, r.Y
	case HandleNE:
		return r.X + r.W, r.Y
	case HandleE:
		return r.X + r.W, midY
	case HandleSE:
		return r.X + r.W, r.Y + r.H
	case HandleS:
		return midX, r.Y + r.H
	case HandleSW:
		return r.X, r.Y + r.H
	case HandleW:
		return r.X, midY
	}
	return 0, 0
}

// HandleAt returns the first handle of r within pick range of the
// image-space point (px, py), checking in the fixed nw, n, ne, e, se, s,
// sw, w order. scale converts the screen-pixel pick radius to image units.
func HandleAt(r annotation.Rect, px, py, scale float64) Handle {
	if scale <= 0 {
		return HandleNone
	}
	radius := HandleScreenPx / scale
	for _, h := range handleOrder {
		hx, hy := HandlePoint(r, h)
		dx, dy := px-hx, py-hy
		if dx*dx+dy*dy <= radius*radius {
			return h
		}
	}
	return HandleNone
}

// HitBody reports whether the image-space point is inside the annotation.
func HitBody(a *annotation.Annotation, px, py float64) bool {
	return a.Bounds().Contains(px, py)
}

// TopHit resolves a click in hierarchical mode. Profile annotations are
// tested before any leaf; a leaf is only clickable when it belongs — by
// ParentID or by containment — to one of the active profiles. Within a tier
// the last annotation in draw order (the slice order) wins, matching what is
// painted on top.
func TopHit(anns []*annotation.Annotation, px, py float64, activeProfiles map[string]struct{}) *annotation.Annotation {
	profilesByID := make(map[string]*annotation.Annotation)
	for _, a := range anns {
		if a.Category == annotation.CategoryProfile {
			profilesByID[a.ID] = a
		}
	}

	var hit *annotation.Annotation
	for _, a := range anns {
		if a.Category == annotation.CategoryProfile && HitBody(a, px, py) {
			hit = a
		}
	}
	if hit != nil {
		return hit
	}

	for _, a := range anns {
		if a.Category == annotation.CategoryProfile || !HitBody(a, px, py) {
			continue
		}
		for pid := range activeProfiles {
			p, ok := profilesByID[pid]
			if !ok {
				continue
			}
			if a.ParentID == pid || (a.ParentID == "" && p.Bounds().ContainsRect(a.Bounds())) {
				hit = a
				break
			}
		}
	}
	return hit
}

// Marquee returns the ids of annotations whose entire bounding box lies
// inside the marquee rectangle. Partial overlap does not select.
func Marquee(anns []*annotation.Annotation, box annotation.Rect) []string {
	var ids []string
	for _, a := range anns {
		if box.ContainsRect(a.Bounds()) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// DragBox normalizes a drag from (x1, y1) to (x2, y2) into a rectangle,
// regardless of drag direction.
func DragBox(x1, y1, x2, y2 float64) annotation.Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return annotation.Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}
