// Package store implements the content-addressable record store: deduplicated
// blob storage with a capacity-bounded, most-recent-first index, persisted
// through the key-value capability.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KIWI0912/notar/internal/digest"
	"github.com/KIWI0912/notar/internal/kvstore"
)

const (
	recordKeyPrefix = "record/"
	indexKey        = "index"

	// DefaultIndexCap bounds the recency index; saving past the cap evicts the
	// oldest record.
	DefaultIndexCap = 500
)

var (
	// ErrNoBlob is returned by Save when the blob is absent or empty.
	ErrNoBlob = errors.New("store: no blob provided")
	// ErrNotFound is returned when an operation references a missing record.
	ErrNotFound = errors.New("store: record not found")
)

// ValidationError reports malformed metadata or an illegal record mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "store: " + e.Reason
}

// ChainStatus tracks a record's progress onto the ledger. It is the only
// mutable record field.
type ChainStatus string

const (
	StatusNotSubmitted ChainStatus = "not_submitted"
	StatusPending      ChainStatus = "pending"
	StatusConfirmed    ChainStatus = "confirmed"
	StatusFailed       ChainStatus = "failed"
)

// validNextStatus encodes the monotone transition set.
var validNextStatus = map[ChainStatus][]ChainStatus{
	StatusNotSubmitted: {StatusPending},
	StatusPending:      {StatusConfirmed, StatusFailed},
}

// Metadata is the caller-supplied portion of a record.
type Metadata struct {
	TemplateRef string         `json:"template_ref"`
	FileName    string         `json:"file_name"`
	Fields      map[string]any `json:"fields"`
}

// Record is a stored artifact. Created once by Save, never mutated except for
// chain status transitions, destroyed only by Delete or Clear.
type Record struct {
	ID            string         `json:"id"`
	TemplateRef   string         `json:"template_ref"`
	FileName      string         `json:"file_name"`
	CreatedAt     time.Time      `json:"created_at"`
	SizeBytes     int64          `json:"size_bytes"`
	ContentDigest digest.Digest  `json:"content_digest"`
	Fields        map[string]any `json:"fields"`
	ChainStatus   ChainStatus    `json:"chain_status"`
	Blob          []byte         `json:"blob,omitempty"`
}

// ContentStore owns the record sequence and the recency index. Index
// mutations are serialized so overlapping saves never interleave their
// read-modify-write of the index.
type ContentStore struct {
	mu  sync.Mutex
	kv  kvstore.Store
	cap int
}

// New returns a store over kv. A non-positive cap selects DefaultIndexCap.
func New(kv kvstore.Store, indexCap int) *ContentStore {
	if indexCap <= 0 {
		indexCap = DefaultIndexCap
	}
	return &ContentStore{kv: kv, cap: indexCap}
}

// Save computes the blob's content digest, deduplicates against existing
// records, and otherwise persists a new record and prepends it to the index.
// Byte-identical content is never stored twice; the existing record's id is
// returned and the second caller's metadata is dropped.
func (s *ContentStore) Save(ctx context.Context, meta Metadata, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", ErrNoBlob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contentDigest := digest.Bytes(blob)

	index, err := s.loadIndex(ctx)
	if err != nil {
		return "", err
	}

	for _, id := range index {
		existing, err := s.loadRecord(ctx, id)
		if err != nil {
			continue // missing or corrupt entries never block a save
		}
		if existing.ContentDigest == contentDigest {
			slog.Debug("Duplicate content, reusing record", "id", id, "digest", contentDigest)
			return id, nil
		}
	}

	record := Record{
		ID:            uuid.NewString(),
		TemplateRef:   meta.TemplateRef,
		FileName:      meta.FileName,
		CreatedAt:     time.Now().UTC(),
		SizeBytes:     int64(len(blob)),
		ContentDigest: contentDigest,
		Fields:        meta.Fields,
		ChainStatus:   StatusNotSubmitted,
		Blob:          blob,
	}

	if err := s.writeRecord(ctx, record); err != nil {
		return "", err
	}

	newIndex := append([]string{record.ID}, index...)
	var evicted []string
	if len(newIndex) > s.cap {
		evicted = newIndex[s.cap:]
		newIndex = newIndex[:s.cap]
	}

	if err := s.writeIndex(ctx, newIndex); err != nil {
		// Roll back the record write so no record exists outside the index.
		if delErr := s.kv.Delete(ctx, recordKeyPrefix+record.ID); delErr != nil {
			slog.Warn("Failed to roll back record after index write failure", "id", record.ID, "error", delErr)
		}
		return "", err
	}

	// Evicted ids are already gone from the index; their records are removed
	// best-effort.
	for _, id := range evicted {
		if err := s.kv.Delete(ctx, recordKeyPrefix+id); err != nil {
			slog.Warn("Failed to delete evicted record", "id", id, "error", err)
		}
	}

	slog.Debug("Saved record", "id", record.ID, "digest", contentDigest, "size", record.SizeBytes)
	return record.ID, nil
}

// LoadAll returns every indexed record, most recent first. Index entries whose
// backing record is missing or undecodable are skipped.
func (s *ContentStore) LoadAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(index))
	for _, id := range index {
		record, err := s.loadRecord(ctx, id)
		if err != nil {
			slog.Warn("Skipping unreadable record", "id", id, "error", err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Load returns a single record by id.
func (s *ContentStore) Load(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadRecord(ctx, id)
}

// Delete removes the record and its index entry. Deleting an absent id is not
// an error.
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}

	filtered := index[:0]
	for _, entry := range index {
		if entry != id {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) != len(index) {
		if err := s.writeIndex(ctx, filtered); err != nil {
			return err
		}
	}

	return s.kv.Delete(ctx, recordKeyPrefix+id)
}

// Clear removes every indexed record and empties the index.
func (s *ContentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}

	if err := s.writeIndex(ctx, []string{}); err != nil {
		return err
	}
	for _, id := range index {
		if err := s.kv.Delete(ctx, recordKeyPrefix+id); err != nil {
			slog.Warn("Failed to delete record during clear", "id", id, "error", err)
		}
	}

	return nil
}

// UpdateChainStatus applies the one permitted record mutation. Transitions are
// monotone: not_submitted → pending → confirmed or failed.
func (s *ContentStore) UpdateChainStatus(ctx context.Context, id string, status ChainStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return err
	}

	allowed := false
	for _, next := range validNextStatus[record.ChainStatus] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ValidationError{Reason: fmt.Sprintf("illegal chain status transition %s -> %s for record %s", record.ChainStatus, status, id)}
	}

	record.ChainStatus = status
	return s.writeRecord(ctx, record)
}

// RebuildBlob returns the record's original bytes if it carries an encoded
// payload. A false result signals the caller must reconstruct the content from
// other sources.
func (s *ContentStore) RebuildBlob(record Record) ([]byte, bool) {
	if len(record.Blob) == 0 {
		return nil, false
	}

	out := make([]byte, len(record.Blob))
	copy(out, record.Blob)
	return out, true
}

func (s *ContentStore) loadIndex(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Get(ctx, indexKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	var index []string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	return index, nil
}

func (s *ContentStore) writeIndex(ctx context.Context, index []string) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := s.kv.Set(ctx, indexKey, raw); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	return nil
}

func (s *ContentStore) loadRecord(ctx context.Context, id string) (Record, error) {
	raw, err := s.kv.Get(ctx, recordKeyPrefix+id)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, fmt.Errorf("failed to load record %s: %w", id, err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("failed to decode record %s: %w", id, err)
	}

	return record, nil
}

func (s *ContentStore) writeRecord(ctx context.Context, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}
	if err := s.kv.Set(ctx, recordKeyPrefix+record.ID, raw); err != nil {
		return fmt.Errorf("failed to persist record %s: %w", record.ID, err)
	}

	return nil
}
