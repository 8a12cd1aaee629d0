package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediastash/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testHash(n int) string {
	return fmt.Sprintf("%064x", n)
}

func testRecord(n int, category string) *models.FileRecord {
	return &models.FileRecord{
		FileHash:  testHash(n),
		FilePath:  fmt.Sprintf("/data/%s/file-%d.jpg", category, n),
		FileSize:  int64(1000 + n),
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndGetByHash(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ID to be filled in")
	}

	got, err := st.GetByHash(ctx, rec.FileHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.FilePath != rec.FilePath {
		t.Fatalf("expected path %q, got %q", rec.FilePath, got.FilePath)
	}
	if got.FileSize != rec.FileSize {
		t.Fatalf("expected size %d, got %d", rec.FileSize, got.FileSize)
	}
	if got.HasConverted() {
		t.Fatal("fresh record should have no converted artifact")
	}
	if len(got.GuildUsage) != 0 {
		t.Fatalf("fresh record should have empty usage, got %v", got.GuildUsage)
	}
}

func TestGetByHashUnknown(t *testing.T) {
	st := testStore(t)

	got, err := st.GetByHash(context.Background(), testHash(99))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown hash, got %+v", got)
	}
}

func TestInsertDuplicateHash(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertFile(ctx, testRecord(1, "meme")); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := testRecord(1, "meme")
	dup.FilePath = "/data/meme/other-name.jpg"
	err := st.InsertFile(ctx, dup)
	if !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("expected ErrDuplicateHash, got %v", err)
	}
}

func TestInsertFilesBatchRollsBackOnInvalidRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	bad := testRecord(3, "meme")
	bad.FileSize = -1
	batch := []*models.FileRecord{testRecord(1, "meme"), testRecord(2, "meme"), bad}

	if err := st.InsertFiles(ctx, batch); err == nil {
		t.Fatal("expected validation error")
	}

	count, err := st.CountByCategory(ctx, "meme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table after failed batch, got %d rows", count)
	}
}

func TestInsertFilesBatchRollsBackOnDuplicate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertFile(ctx, testRecord(2, "meme")); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	dup := testRecord(2, "meme")
	dup.FilePath = "/data/meme/copy.jpg"
	err := st.InsertFiles(ctx, []*models.FileRecord{testRecord(10, "meme"), dup})
	if !errors.Is(err, ErrDuplicateHash) {
		t.Fatalf("expected ErrDuplicateHash, got %v", err)
	}

	count, err := st.CountByCategory(ctx, "meme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the seeded row, got %d", count)
	}
}

func TestOverflowSizeRejectedBeforeWrite(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertFile(ctx, testRecord(1, "meme")); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	// 2^63 does not fit in int64; the cast lands negative and must be
	// rejected by validation, not stored.
	huge := testRecord(2, "meme")
	bit63 := uint64(1) << 63
	huge.FileSize = int64(bit63)
	if err := st.InsertFile(ctx, huge); err == nil {
		t.Fatal("expected validation error for negative size")
	}

	got, err := st.GetByHash(ctx, testHash(1))
	if err != nil {
		t.Fatalf("prior row must stay readable: %v", err)
	}
	if got == nil {
		t.Fatal("prior row vanished")
	}
}

func TestIncrementSendCountDistinctGuilds(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const guilds = 8
	var wg sync.WaitGroup
	errs := make(chan error, guilds)
	for i := range guilds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.IncrementSendCount(ctx, rec.FileHash, fmt.Sprintf("guild%d", i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	got, err := st.GetByHash(ctx, rec.FileHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i := range guilds {
		guild := fmt.Sprintf("guild%d", i)
		if got.SendCount(guild) != 1 {
			t.Fatalf("guild %s: expected count 1, got %d", guild, got.SendCount(guild))
		}
		usage := got.GuildUsage[guild]
		if usage.LastSent == nil {
			t.Fatalf("guild %s: expected last_sent to be stamped", guild)
		}
	}
}

func TestIncrementSendCountSameGuildConcurrent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.IncrementSendCount(ctx, rec.FileHash, "guild1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	got, err := st.GetByHash(ctx, rec.FileHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SendCount("guild1") != n {
		t.Fatalf("expected count %d, got %d", n, got.SendCount("guild1"))
	}
}

func TestIncrementSendCountUnknownHash(t *testing.T) {
	st := testStore(t)

	got, err := st.IncrementSendCount(context.Background(), testHash(42), "guild1")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown hash, got %+v", got)
	}
}

func TestConvertedTripleLifecycle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	convHash := testHash(100)
	updated, err := st.UpdateConverted(ctx, rec.FileHash, "/data/converted/a.jpg", convHash, 500)
	if err != nil {
		t.Fatalf("update converted: %v", err)
	}
	if !updated.HasConverted() {
		t.Fatal("expected complete converted triple")
	}
	if *updated.ConvertedSize != 500 {
		t.Fatalf("expected converted size 500, got %d", *updated.ConvertedSize)
	}

	// lookups by the artifact's hash find the owning record
	byConv, err := st.GetByHash(ctx, convHash)
	if err != nil {
		t.Fatalf("get by converted hash: %v", err)
	}
	if byConv == nil || byConv.FileHash != rec.FileHash {
		t.Fatalf("expected record %s via converted hash, got %+v", rec.FileHash, byConv)
	}

	cleared, err := st.ClearConverted(ctx, rec.FileHash)
	if err != nil {
		t.Fatalf("clear converted: %v", err)
	}
	if cleared.HasConverted() || cleared.ConvertedPath != "" || cleared.ConvertedSize != nil {
		t.Fatalf("expected all converted fields cleared, got %+v", cleared)
	}
}

func TestUpdateConvertedValidation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := st.UpdateConverted(ctx, rec.FileHash, "", testHash(2), 10); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := st.UpdateConverted(ctx, rec.FileHash, "/x", "nothex", 10); err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if _, err := st.UpdateConverted(ctx, rec.FileHash, "/x", testHash(2), -1); err == nil {
		t.Fatal("expected error for negative size")
	}

	got, _ := st.GetByHash(ctx, rec.FileHash)
	if got.HasConverted() {
		t.Fatal("failed updates must not leave partial converted state")
	}
}

func TestListUnsentAcrossGuilds(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := testRecord(1, "meme")
	if err := st.InsertFile(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	unsent, err := st.ListUnsent(ctx, "guild1", "meme")
	if err != nil {
		t.Fatalf("list unsent: %v", err)
	}
	if len(unsent) != 1 {
		t.Fatalf("expected 1 unsent record, got %d", len(unsent))
	}

	if _, err := st.IncrementSendCount(ctx, rec.FileHash, "guild1"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	unsent, err = st.ListUnsent(ctx, "guild1", "meme")
	if err != nil {
		t.Fatalf("list unsent: %v", err)
	}
	if len(unsent) != 0 {
		t.Fatalf("guild1 already saw the file, expected 0, got %d", len(unsent))
	}

	// a send to guild1 does not consume the file for guild2
	unsent, err = st.ListUnsent(ctx, "guild2", "meme")
	if err != nil {
		t.Fatalf("list unsent: %v", err)
	}
	if len(unsent) != 1 {
		t.Fatalf("expected file still unsent for guild2, got %d", len(unsent))
	}
}

func TestSearchByFilename(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	cat := testRecord(1, "meme")
	cat.FilePath = "/data/memes/cat_dance.gif"
	dir := testRecord(2, "meme")
	dir.FilePath = "/data/cat_stuff/unrelated.png"
	if err := st.InsertFiles(ctx, []*models.FileRecord{cat, dir}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.SearchByFilename(ctx, "cat_")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match on the filename component, got %d", len(got))
	}
	if got[0].FilePath != cat.FilePath {
		t.Fatalf("expected %q, got %q", cat.FilePath, got[0].FilePath)
	}

	got, err = st.SearchByFilename(ctx, "nosuchfile")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestDeleteByHashAndPath(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	a := testRecord(1, "meme")
	b := testRecord(2, "meme")
	if err := st.InsertFiles(ctx, []*models.FileRecord{a, b}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	gone, err := st.DeleteByHash(ctx, a.FileHash)
	if err != nil || !gone {
		t.Fatalf("delete by hash: gone=%v err=%v", gone, err)
	}
	gone, err = st.DeleteByPath(ctx, b.FilePath)
	if err != nil || !gone {
		t.Fatalf("delete by path: gone=%v err=%v", gone, err)
	}
	gone, err = st.DeleteByHash(ctx, a.FileHash)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if gone {
		t.Fatal("second delete should report no row removed")
	}
}

func TestAllHashesAndPaths(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.InsertFiles(ctx, []*models.FileRecord{
		testRecord(1, "meme"),
		testRecord(2, "meme"),
		testRecord(3, "private"),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hashes, err := st.AllHashes(ctx)
	if err != nil {
		t.Fatalf("all hashes: %v", err)
	}
	if len(hashes) != 3 {
		t.Fatalf("expected 3 hashes, got %d", len(hashes))
	}
	if _, ok := hashes[testHash(2)]; !ok {
		t.Fatal("expected hash 2 in set")
	}

	paths, err := st.AllPaths(ctx, "meme")
	if err != nil {
		t.Fatalf("all paths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 meme paths, got %d", len(paths))
	}
}

func TestListLargerThan(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	small := testRecord(1, "meme")
	small.FileSize = 100
	big := testRecord(2, "meme")
	big.FileSize = 5000
	if err := st.InsertFiles(ctx, []*models.FileRecord{small, big}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.ListLargerThan(ctx, 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].FileHash != big.FileHash {
		t.Fatalf("expected only the big record, got %+v", got)
	}
}
