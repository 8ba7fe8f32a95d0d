// Package annotator is a collaborative annotation engine for large
// technical drawings: rectangular profile, model and OCR annotations with a
// one-level parent/child containment relationship, an image/canvas/screen
// coordinate transform, bounded undo/redo history and a WebSocket sync
// layer keeping concurrent editors convergent.
//
// The Engine type in this package is the facade callers interact with; the
// subsystems live in pkg/ and can also be used on their own:
//
//   - pkg/annotation: the entity model and geometry
//   - pkg/store: the canonical annotation collection
//   - pkg/transform: coordinate mapping and zoom/fit
//   - pkg/hittest: pointer resolution and marquee selection
//   - pkg/history: the undo/redo snapshot stack
//   - pkg/collab: remote user presence
//   - pkg/realtime: the sync client
package annotator
