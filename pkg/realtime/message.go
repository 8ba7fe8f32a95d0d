package realtime

import (
	"encoding/json"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// Wire message kinds. Client→server kinds carry a payload object;
// server→client kinds are flat envelopes.
const (
	TypePresencePing  = "presence:ping"
	TypePresenceJoin  = "presence:join"
	TypePresenceLeave = "presence:leave"

	TypeCursorUpdate    = "cursor:update"
	TypeSelectionUpdate = "selection:update"
	TypeSelectionClear  = "selection:clear"

	TypeAnnotationList     = "annotation:list"
	TypeAnnotationCreate   = "annotation:create"
	TypeAnnotationUpdate   = "annotation:update"
	TypeAnnotationDelete   = "annotation:delete"
	TypeAnnotationCreated  = "annotation:created"
	TypeAnnotationUpdated  = "annotation:updated"
	TypeAnnotationDeleted  = "annotation:deleted"
	TypeAnnotationConflict = "annotation:conflict"

	TypeAck   = "ack"
	TypeError = "error"
)

// UserRef identifies the user a server frame is about.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CursorPayload is the live pointer position, in image space.
type CursorPayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Tool    string  `json:"tool,omitempty"`
	Color   string  `json:"color,omitempty"`
	ImageID string  `json:"image_id,omitempty"`
}

// SelectionPayload announces which annotation the local user selected.
type SelectionPayload struct {
	AnnotationID string `json:"annotation_id"`
	ImageID      string `json:"image_id,omitempty"`
}

// ListPayload subscribes to the annotations of one viewport (profile).
type ListPayload struct {
	ViewportID string `json:"viewport_id"`
}

// DeletePayload carries a versioned delete.
type DeletePayload struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// outbound is the client→server frame shape.
type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Envelope is the server→client frame shape. Fields are populated per
// message kind; Payload stays raw until the kind is known.
type Envelope struct {
	Type        string                   `json:"type"`
	ProjectID   string                   `json:"project_id,omitempty"`
	Event       string                   `json:"event,omitempty"`
	Message     string                   `json:"message,omitempty"`
	User        *UserRef                 `json:"user,omitempty"`
	SelectionID string                   `json:"selection_id,omitempty"`
	ViewportID  string                   `json:"viewport_id,omitempty"`
	Annotation  *annotation.Annotation   `json:"annotation,omitempty"`
	Annotations []*annotation.Annotation `json:"annotations,omitempty"`
	Payload     json.RawMessage          `json:"payload,omitempty"`
}

// Handler receives decoded server frames. Implementations route them into
// the annotation store and the collaboration registry; none of these calls
// go through the history manager, since remote state is authoritative and
// not locally undoable.
type Handler interface {
	HandlePresenceJoin(user UserRef)
	HandlePresenceLeave(user UserRef)
	HandleCursor(user UserRef, cursor CursorPayload)
	HandleSelection(user UserRef, selectionID string)
	HandleSelectionClear(user UserRef)
	HandleAnnotationList(viewportID string, items []*annotation.Annotation)
	HandleAnnotationUpsert(a *annotation.Annotation)
	HandleAnnotationDelete(a *annotation.Annotation)
	HandleProtocolError(event, message string)
}
