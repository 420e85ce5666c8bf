package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIWI0912/notar/internal/digest"
	"github.com/KIWI0912/notar/internal/kvstore"
	"github.com/KIWI0912/notar/internal/store"
)

func newTestStore() (*store.ContentStore, *kvstore.MemoryStore) {
	kv := kvstore.NewMemoryStore()
	return store.New(kv, 0), kv
}

func testMeta(name string) store.Metadata {
	return store.Metadata{
		TemplateRef: "nda-v2",
		FileName:    name,
		Fields:      map[string]any{"party": "Acme"},
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	blob := []byte("contract body")

	id, err := s.Save(ctx, testMeta("nda.pdf"), blob)
	require.NoError(t, err)

	record, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "nda.pdf", record.FileName)
	assert.Equal(t, int64(len(blob)), record.SizeBytes)
	assert.Equal(t, digest.Bytes(blob), record.ContentDigest)
	assert.Equal(t, store.StatusNotSubmitted, record.ChainStatus)
}

func TestSaveRejectsEmptyBlob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, err := s.Save(ctx, testMeta("empty.pdf"), nil)
	assert.ErrorIs(t, err, store.ErrNoBlob)

	_, err = s.Save(ctx, testMeta("empty.pdf"), []byte{})
	assert.ErrorIs(t, err, store.ErrNoBlob)
}

func TestSaveDeduplicatesIdenticalContent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	blob := []byte("identical bytes")

	first, err := s.Save(ctx, testMeta("a.pdf"), blob)
	require.NoError(t, err)
	second, err := s.Save(ctx, testMeta("b.pdf"), blob)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	// Dedup wins over the second caller's metadata.
	assert.Equal(t, "a.pdf", records[0].FileName)
}

func TestLoadAllMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	older, err := s.Save(ctx, testMeta("older.pdf"), []byte("older"))
	require.NoError(t, err)
	newer, err := s.Save(ctx, testMeta("newer.pdf"), []byte("newer"))
	require.NoError(t, err)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer, records[0].ID)
	assert.Equal(t, older, records[1].ID)
}

func TestLoadAllSkipsMissingRecords(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	id, err := s.Save(ctx, testMeta("keep.pdf"), []byte("keep"))
	require.NoError(t, err)
	gone, err := s.Save(ctx, testMeta("gone.pdf"), []byte("gone"))
	require.NoError(t, err)

	// Simulate partial corruption: the record vanishes but its index entry stays.
	require.NoError(t, kv.Delete(ctx, "record/"+gone))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
}

func TestIndexCapEvictsOldest(t *testing.T) {
	assert.Equal(t, 500, store.DefaultIndexCap)

	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := store.New(kv, 3)

	oldest, err := s.Save(ctx, testMeta("r0"), []byte("blob-0"))
	require.NoError(t, err)
	for i := 1; i < 4; i++ {
		_, err := s.Save(ctx, testMeta(fmt.Sprintf("r%d", i)), []byte(fmt.Sprintf("blob-%d", i)))
		require.NoError(t, err)
	}

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, record := range records {
		assert.NotEqual(t, oldest, record.ID)
	}

	// The evicted record is removed from persistence, not just unindexed.
	_, err = kv.Get(ctx, "record/"+oldest)
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	id, err := s.Save(ctx, testMeta("doc.pdf"), []byte("doc"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	id, err := s.Save(ctx, testMeta("doc.pdf"), []byte("doc"))
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = kv.Get(ctx, "record/"+id)
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestRebuildBlob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	blob := []byte("original bytes")

	id, err := s.Save(ctx, testMeta("doc.pdf"), blob)
	require.NoError(t, err)
	record, err := s.Load(ctx, id)
	require.NoError(t, err)

	rebuilt, ok := s.RebuildBlob(record)
	require.True(t, ok)
	assert.Equal(t, blob, rebuilt)

	record.Blob = nil
	_, ok = s.RebuildBlob(record)
	assert.False(t, ok)
}

func TestUpdateChainStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	id, err := s.Save(ctx, testMeta("doc.pdf"), []byte("doc"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateChainStatus(ctx, id, store.StatusPending))
	require.NoError(t, s.UpdateChainStatus(ctx, id, store.StatusConfirmed))

	record, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusConfirmed, record.ChainStatus)

	// Confirmed is terminal.
	var validation *store.ValidationError
	err = s.UpdateChainStatus(ctx, id, store.StatusPending)
	require.ErrorAs(t, err, &validation)

	err = s.UpdateChainStatus(ctx, "missing", store.StatusPending)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// failingKV fails every Set of the given key, wrapping an in-memory store
// otherwise.
type failingKV struct {
	kvstore.Store
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return &kvstore.WriteError{Key: key, Err: errors.New("quota exceeded")}
	}
	return f.Store.Set(ctx, key, value)
}

func TestFailedIndexWriteLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{Store: kvstore.NewMemoryStore(), failKey: "index"}
	s := store.New(kv, 0)

	_, err := s.Save(ctx, testMeta("doc.pdf"), []byte("doc"))
	require.Error(t, err)
	var writeErr *kvstore.WriteError
	assert.ErrorAs(t, err, &writeErr)

	// No record may linger outside the index.
	keys, err := kv.Keys(ctx, "record/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
