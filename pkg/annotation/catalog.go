package annotation

import "strings"

// Catalog holds the three static label lists used to infer a category when
// an incoming annotation does not carry one. Matching is case-insensitive
// and checked in profile, model, ocr order.
type Catalog struct {
	Profile []string
	Model   []string
	OCR     []string

	profileSet map[string]struct{}
	modelSet   map[string]struct{}
	ocrSet     map[string]struct{}
}

// NewCatalog builds a catalog with its lookup sets populated.
func NewCatalog(profile, model, ocr []string) *Catalog {
	c := &Catalog{Profile: profile, Model: model, OCR: ocr}
	c.profileSet = toSet(profile)
	c.modelSet = toSet(model)
	c.ocrSet = toSet(ocr)
	return c
}

// DefaultCatalog returns the built-in label lists for structural drawings.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]string{"profile", "section", "elevation", "detail", "plan view"},
		[]string{"beam", "column", "plate", "bolt", "weld", "stiffener", "angle", "channel"},
		[]string{"dimension", "text", "mark", "note", "grade", "quantity"},
	)
}

// Infer matches label against the catalogs in profile, model, ocr order.
// An unmatched label stays unclassified.
func (c *Catalog) Infer(label string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return "", false
	}
	if _, ok := c.profileSet[key]; ok {
		return CategoryProfile, true
	}
	if _, ok := c.modelSet[key]; ok {
		return CategoryModel, true
	}
	if _, ok := c.ocrSet[key]; ok {
		return CategoryOCR, true
	}
	return "", false
}

// Classify fills in a's category from its label when absent.
func (c *Catalog) Classify(a *Annotation) {
	if a.Category != "" {
		return
	}
	if cat, ok := c.Infer(a.Label); ok {
		a.Category = cat
	}
}

func toSet(labels []string) map[string]struct{} {
	s := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		s[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return s
}
