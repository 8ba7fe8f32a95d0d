package annotator

import (
	"fmt"
	"time"

	"github.com/LokeshNardil/annotation-b-f/internal/codec"
	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// ExportPayload is the JSON interchange document for one image's
// annotations.
type ExportPayload struct {
	Image       string                   `json:"image"`
	Annotations []*annotation.Annotation `json:"annotations"`
	ExportedAt  time.Time                `json:"exported_at"`
}

// Export serializes the current annotation set as a JSON document.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	payload := ExportPayload{
		Image:       e.imageURL,
		Annotations: e.anns.ExportSnapshot(),
		ExportedAt:  time.Now().UTC(),
	}
	e.mu.Unlock()
	return codec.JSON{}.Marshal(payload)
}

// Import replaces the current annotation set with a previously exported
// document. The payload is validated in full before anything is applied; a
// malformed document leaves the current state untouched.
func (e *Engine) Import(data []byte) error {
	var payload ExportPayload
	if err := (codec.JSON{}).Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parsing import payload: %w", err)
	}
	if payload.Annotations == nil {
		return fmt.Errorf("import payload has no annotations field")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.anns.ImportSnapshot(payload.Annotations); err != nil {
		return err
	}
	e.commit()
	return nil
}
