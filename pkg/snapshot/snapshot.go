// Package snapshot persists per-image working state so a document survives
// a reload: the annotation set, the active label and the view transform.
// Entries are CBOR files keyed by a truncated prefix of the image URL, with
// a side index of known keys for enumeration.
package snapshot

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/LokeshNardil/annotation-b-f/internal/codec"
	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
	"github.com/LokeshNardil/annotation-b-f/pkg/logger"
	"github.com/LokeshNardil/annotation-b-f/pkg/transform"
)

// keyPrefixLen bounds how much of the image URL participates in the key, so
// that long signed URLs with rotating query strings still map to one entry.
const keyPrefixLen = 100

// Snapshot is the persisted working state for one image.
type Snapshot struct {
	Annotations []*annotation.Annotation `cbor:"annotations"`
	ActiveLabel string                   `cbor:"active_label"`
	Transform   transform.Transform      `cbor:"transform"`
	Timestamp   time.Time                `cbor:"timestamp"`
}

// Store writes snapshots under a directory, one file per image key, plus an
// index file enumerating every known key.
type Store struct {
	dir   string
	codec codec.Codec
	log   logger.Logger
}

func NewStore(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &Store{dir: dir, codec: codec.CBOR{}, log: log}, nil
}

// Key derives the storage key for an image URL: the truncated URL prefix
// plus a short hash of the full URL to keep distinct long URLs apart.
func Key(imageURL string) string {
	prefix := imageURL
	if len(prefix) > keyPrefixLen {
		prefix = prefix[:keyPrefixLen]
	}
	h := fnv.New32a()
	h.Write([]byte(imageURL))
	return fmt.Sprintf("%08x", h.Sum32()) + "-" + sanitize(prefix)
}

// Save persists the snapshot for an image. Write failures (quota,
// permissions) are logged as warnings and reported, but callers treat them
// as non-fatal: in-memory state is unaffected.
func (s *Store) Save(imageURL string, snap Snapshot) error {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	data, err := s.codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	key := Key(imageURL)
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		s.log.Warn("snapshot not persisted", "key", key, "error", err)
		return err
	}
	if err := s.addToIndex(key); err != nil {
		s.log.Warn("snapshot index not updated", "key", key, "error", err)
	}
	return nil
}

// Load reads the snapshot for an image. A missing entry returns ok=false; a
// corrupt entry is logged and treated as missing, so a bad persisted state
// never blocks opening the image.
func (s *Store) Load(imageURL string) (Snapshot, bool) {
	key := Key(imageURL)
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false
	}
	if err != nil {
		s.log.Warn("snapshot unreadable", "key", key, "error", err)
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := s.codec.Unmarshal(data, &snap); err != nil {
		s.log.Warn("snapshot corrupt, ignoring", "key", key, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Delete removes the snapshot for an image, if any.
func (s *Store) Delete(imageURL string) {
	key := Key(imageURL)
	_ = os.Remove(s.path(key))
	_ = s.removeFromIndex(key)
}

// Keys enumerates every stored snapshot key, sorted.
func (s *Store) Keys() []string {
	keys, err := s.readIndex()
	if err != nil {
		s.log.Warn("snapshot index unreadable", "error", err)
		return nil
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".cbor")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.cbor")
}

func (s *Store) readIndex() ([]string, error) {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := s.codec.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) writeIndex(keys []string) error {
	data, err := s.codec.Marshal(keys)
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

func (s *Store) addToIndex(key string) error {
	keys, err := s.readIndex()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.writeIndex(append(keys, key))
}

func (s *Store) removeFromIndex(key string) error {
	keys, err := s.readIndex()
	if err != nil {
		return err
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.writeIndex(kept)
}

func sanitize(key string) string {
	out := []byte(key)
	for i, b := range out {
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '-', b == '_', b == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
