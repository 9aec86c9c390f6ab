package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docforge/internal/extract"
	"github.com/joseph-ayodele/docforge/internal/pipeline"
	"github.com/joseph-ayodele/docforge/internal/render"
	"github.com/joseph-ayodele/docforge/internal/repository"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStore_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	first, err := store.Save("../../etc/report.PDF", "application/octet-stream", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "report.PDF", first.OriginalName)
	assert.Equal(t, "report-1700000000000.PDF", first.StoredName)
	assert.Equal(t, filepath.Join(dir, first.StoredName), first.Path)
	assert.Equal(t, int64(8), first.Size)
	assert.Equal(t, "application/pdf", first.MimeType)

	second, err := store.Save("report.PDF", "", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Regexp(t, `^report-1700000000000-[0-9a-f]{8}\.PDF$`, second.StoredName)
	assert.FileExists(t, second.Path)
}

func TestStore_SameBaseNameGetsDistinctStems(t *testing.T) {
	store := NewStore(t.TempDir())
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	txt, err := store.Save("report.txt", "text/plain", strings.NewReader("alpha report body"))
	require.NoError(t, err)
	md, err := store.Save("report.md", "text/markdown", strings.NewReader("bravo report body"))
	require.NoError(t, err)

	assert.Equal(t, "report-1700000000000.txt", txt.StoredName)
	assert.Regexp(t, `^report-1700000000000-[0-9a-f]{8}\.md$`, md.StoredName)
	assert.NotEqual(t, stem(txt.StoredName), stem(md.StoredName))
}

func TestStore_BatchWithSameBaseNameKeepsSeparatePDFs(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "uploads"))
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }

	var uploads []pipeline.Upload
	for _, name := range []string{"report.txt", "report.md"} {
		u, err := store.Save(name, "", strings.NewReader("Quarterly numbers for "+name))
		require.NoError(t, err)
		uploads = append(uploads, u)
	}

	orch := pipeline.NewOrchestrator(
		repository.NewMemoryRepository(),
		extract.NewDefaultRegistry(extract.Deps{WorkDir: filepath.Join(root, "work"), Logger: quietLogger()}),
		render.NewRenderer(filepath.Join(root, "pdf"), quietLogger()),
		quietLogger(),
	)
	ctx := context.Background()
	results := orch.Ingest(ctx, uploads)
	require.Len(t, results, 2)
	require.True(t, results[0].Success, results[0].Message)
	require.True(t, results[1].Success, results[1].Message)

	first, second := results[0].Record, results[1].Record
	assert.NotEqual(t, first.PDFPath, second.PDFPath)

	_, err := orch.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.NoFileExists(t, first.PDFPath)
	assert.FileExists(t, second.PDFPath)
	assert.FileExists(t, second.Path)
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a.txt", SafeName(`C:\Users\me\a.txt`))
	assert.Equal(t, "b.csv", SafeName("/tmp/../b.csv"))
	assert.Equal(t, "file", SafeName(""))
	assert.Equal(t, ".env", SafeName(".env"))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/csv", MediaType("text/csv; charset=utf-8", ".csv"))
	assert.Equal(t, "application/pdf", MediaType("application/octet-stream", ".pdf"))
	assert.Equal(t, "application/octet-stream", MediaType("", ".nope"))
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.csv"), "b")
	writeFile(t, filepath.Join(root, "sub", "c.exe"), "c")
	writeFile(t, filepath.Join(root, ".git", "d.txt"), "d")

	files, stats, err := CollectFiles(root, true)
	require.NoError(t, err)
	sort.Strings(files)
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "sub", "b.csv")}, files)
	assert.Equal(t, DirStats{Scanned: 3, Matched: 2, Skipped: 1}, stats)

	files, _, err = CollectFiles(root, false)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, _, err = CollectFiles(" ", false)
	assert.Error(t, err)
}

type fakeIngester struct {
	mu      sync.Mutex
	uploads []pipeline.Upload
	fail    bool
}

func (f *fakeIngester) Ingest(_ context.Context, uploads []pipeline.Upload) []pipeline.FileOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploads...)
	out := make([]pipeline.FileOutcome, len(uploads))
	for i := range uploads {
		out[i] = pipeline.FileOutcome{Success: !f.fail}
	}
	return out
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func TestInbox_HandleSkipsDuplicateContent(t *testing.T) {
	inboxDir, uploadDir := t.TempDir(), t.TempDir()
	svc := &fakeIngester{}
	inbox := NewInbox(NewStore(uploadDir), svc, quietLogger())

	p := filepath.Join(inboxDir, "memo.txt")
	writeFile(t, p, "memo body")

	_, ok, err := inbox.Handle(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = inbox.Handle(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, ok, "same content is ingested once")

	require.Equal(t, 1, svc.count())
	assert.Equal(t, "memo.txt", svc.uploads[0].OriginalName)
	assert.FileExists(t, svc.uploads[0].Path)
	assert.Equal(t, uploadDir, filepath.Dir(svc.uploads[0].Path))
	assert.FileExists(t, p, "inbox file is copied, not moved")
}

func TestInbox_FailedIngestCanRetry(t *testing.T) {
	svc := &fakeIngester{fail: true}
	inbox := NewInbox(NewStore(t.TempDir()), svc, quietLogger())
	p := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, p, "body")

	for range 2 {
		_, ok, err := inbox.Handle(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, svc.count())

	_, _, err := inbox.Handle(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestStartWatcher_InitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.txt"), "x")
	writeFile(t, filepath.Join(root, "ignored.bin"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "existing.txt"), p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan emitted nothing")
	}

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// give the watcher a moment to pick up the new directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(sub, "new.csv"), "a,b\n1,2\n")

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(sub, "new.csv"), p)
	case <-time.After(3 * time.Second):
		t.Fatal("new file not reported")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
