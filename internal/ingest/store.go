// Package ingest brings files into the upload directory, from HTTP uploads,
// a watched inbox or a directory walk.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docforge/internal/pipeline"
)

// Store writes incoming files under one directory with unique names.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

// Save stores r as <base>-<unixmillis><ext>. The stem before the extension
// is unique in the directory, since canonical PDFs and slide work dirs are
// keyed on it. On a collision a short random suffix is added to the stem.
func (s *Store) Save(filename, contentType string, r io.Reader) (pipeline.Upload, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return pipeline.Upload{}, fmt.Errorf("create upload dir: %w", err)
	}

	original := SafeName(filename)
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	if base == "" {
		base = "file"
	}
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	dst, name, err := s.create(base+"-"+stamp, ext, func() string {
		return base + "-" + stamp + "-" + uuid.NewString()[:8]
	})
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("create stored file: %w", err)
	}
	path := dst.Name()

	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return pipeline.Upload{}, fmt.Errorf("write stored file: %w", err)
	}

	return pipeline.Upload{
		OriginalName: original,
		StoredName:   name,
		Path:         path,
		MimeType:     MediaType(contentType, ext),
		Size:         n,
	}, nil
}

// create opens a new file whose stem no other entry in the directory uses.
func (s *Store) create(stem, ext string, next func() string) (*os.File, string, error) {
	unlock := lockDir(s.dir)
	defer unlock()

	for attempt := 0; attempt <= maxNameAttempts; attempt++ {
		if attempt > 0 {
			stem = next()
		}
		taken, err := stemTaken(s.dir, stem)
		if err != nil {
			return nil, "", err
		}
		if taken {
			continue
		}
		dst, err := os.OpenFile(filepath.Join(s.dir, stem+ext), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return dst, stem + ext, nil
	}
	return nil, "", fmt.Errorf("no free name for %q: %w", stem+ext, os.ErrExist)
}

const maxNameAttempts = 5

// Stores in one process share a lock per directory.
var dirLocks sync.Map

func lockDir(dir string) func() {
	v, _ := dirLocks.LoadOrStore(filepath.Clean(dir), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// stemTaken reports whether any entry in dir is named stem or stem.<anything>.
func stemTaken(dir, stem string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read upload dir: %w", err)
	}
	for _, e := range entries {
		if n := e.Name(); n == stem || strings.HasPrefix(n, stem+".") {
			return true, nil
		}
	}
	return false, nil
}

// SaveFile copies a file from disk into the store.
func (s *Store) SaveFile(path string) (pipeline.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return s.Save(filepath.Base(path), "", f)
}

// SafeName strips any directory part a client put in a filename.
func SafeName(filename string) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, `\`, "/")))
	if name == "/" || name == "." {
		return "file"
	}
	return name
}

// MediaType prefers a declared type and falls back to the extension.
func MediaType(declared, ext string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
