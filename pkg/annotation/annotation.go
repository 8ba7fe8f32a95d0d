// Package annotation defines the annotation entity shared by the store,
// the sync client and the persistence layer: a rectangular region over a
// technical drawing, classified into one of three categories and optionally
// attached to a parent profile region.
package annotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies an annotation. Profile regions are the only ones
// allowed to contain children; model and OCR boxes are leaves.
type Category string

const (
	CategoryProfile Category = "profile"
	CategoryModel   Category = "model"
	CategoryOCR     Category = "ocr"
)

// Annotation is a single rectangular annotation in image coordinates.
//
// ParentID is a plain foreign key to a profile annotation, never a pointer
// back into the collection; nesting depth above one level is rejected at the
// store boundary, not encoded in the type.
type Annotation struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	OCRLabel string `json:"ocr_label,omitempty"`
	Color    string `json:"color,omitempty"`

	Rect

	ParentID string   `json:"parent_id,omitempty"`
	Category Category `json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the logical version carried on create/update/delete
	// messages. It happens to be a unix-milli timestamp, but the client
	// never interprets it beyond passing it to the authority.
	Version int64 `json:"version,omitempty"`
}

// Bounds returns the annotation rectangle.
func (a *Annotation) Bounds() Rect {
	return a.Rect
}

// Clone returns an independent copy.
func (a *Annotation) Clone() *Annotation {
	c := *a
	return &c
}

// Touch bumps UpdatedAt and Version to now.
func (a *Annotation) Touch(now time.Time) {
	a.UpdatedAt = now
	a.Version = now.UnixMilli()
}

// NormalizeID returns id if it parses as a UUID, otherwise a freshly
// generated one. Externally supplied ids are never trusted to be well
// formed.
func NormalizeID(id string) string {
	if _, err := uuid.Parse(id); err != nil {
		return uuid.NewString()
	}
	return id
}

// NewID returns a fresh UUID string.
func NewID() string {
	return uuid.NewString()
}

// Validate rejects annotations that must not enter the store.
func (a *Annotation) Validate() error {
	if !a.Rect.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidGeometry, a.Rect)
	}
	return nil
}

var ErrInvalidGeometry = fmt.Errorf("invalid annotation geometry")

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Label    *string
	OCRLabel *string
	Color    *string
	X        *float64
	Y        *float64
	W        *float64
	H        *float64
	ParentID *string
	Category *Category
}

// Apply copies the non-nil fields of p onto a. The resulting geometry is
// validated by the caller before the change is committed.
func (p Patch) Apply(a *Annotation) {
	if p.Label != nil {
		a.Label = *p.Label
	}
	if p.OCRLabel != nil {
		a.OCRLabel = *p.OCRLabel
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.W != nil {
		a.W = *p.W
	}
	if p.H != nil {
		a.H = *p.H
	}
	if p.ParentID != nil {
		a.ParentID = *p.ParentID
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
}
