// Package ingest maps bulk CSV geometry exports onto annotations. Column
// headers vary between producers, so each field is resolved through an
// alias chain; rows that do not yield a positive, finite box are dropped
// one by one.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

var (
	xAliases  = []string{"x_min", "xmin", "left", "x1", "x"}
	yAliases  = []string{"y_min", "ymin", "top", "y1", "y"}
	x2Aliases = []string{"x_max", "xmax", "right", "x2"}
	y2Aliases = []string{"y_max", "ymax", "bottom", "y2"}
	wAliases  = []string{"width", "w"}
	hAliases  = []string{"height", "h"}

	labelAliases = []string{"label", "name", "class", "category_name"}
	textAliases  = []string{"text", "ocr_text", "value"}
	idAliases    = []string{"id", "annotation_id"}
)

type columns struct {
	x, y, x2, y2, w, h int
	label, text, id    int
}

// ReadCSV parses r and returns one annotation per valid row. A file whose
// header resolves no usable geometry columns is an error; individual bad
// rows are skipped silently, and a batch with zero valid rows is simply an
// empty result.
func ReadCSV(r io.Reader, catalog *annotation.Catalog) ([]*annotation.Annotation, error) {
	if catalog == nil {
		catalog = annotation.DefaultCatalog()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols := resolveColumns(header)
	if cols.x < 0 || cols.y < 0 {
		return nil, fmt.Errorf("csv header resolves no origin columns: %v", header)
	}
	if cols.w < 0 && cols.x2 < 0 {
		return nil, fmt.Errorf("csv header resolves no width columns: %v", header)
	}

	var out []*annotation.Annotation
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if a, ok := rowToAnnotation(row, cols, catalog); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func resolveColumns(header []string) columns {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := idx[a]; ok {
				return i
			}
		}
		return -1
	}
	return columns{
		x:     find(xAliases),
		y:     find(yAliases),
		x2:    find(x2Aliases),
		y2:    find(y2Aliases),
		w:     find(wAliases),
		h:     find(hAliases),
		label: find(labelAliases),
		text:  find(textAliases),
		id:    find(idAliases),
	}
}

func rowToAnnotation(row []string, cols columns, catalog *annotation.Catalog) (*annotation.Annotation, bool) {
	x, okX := floatAt(row, cols.x)
	y, okY := floatAt(row, cols.y)
	if !okX || !okY {
		return nil, false
	}

	var w, h float64
	if v, ok := floatAt(row, cols.w); ok {
		w = v
	} else if v, ok := floatAt(row, cols.x2); ok {
		w = v - x
	} else {
		return nil, false
	}
	if v, ok := floatAt(row, cols.h); ok {
		h = v
	} else if v, ok := floatAt(row, cols.y2); ok {
		h = v - y
	} else {
		return nil, false
	}

	a := &annotation.Annotation{
		ID:       annotation.NewID(),
		Label:    stringAt(row, cols.label),
		OCRLabel: stringAt(row, cols.text),
		Rect:     annotation.Rect{X: x, Y: y, W: w, H: h},
	}
	if !a.Rect.Valid() {
		return nil, false
	}
	if id := stringAt(row, cols.id); id != "" {
		a.ID = annotation.NormalizeID(id)
	}
	catalog.Classify(a)
	return a, true
}

func floatAt(row []string, i int) (float64, bool) {
	if i < 0 || i >= len(row) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
