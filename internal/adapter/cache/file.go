package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// FileStore keeps one <key>.mp3 file per entry. Files are written to a
// temporary .part name and renamed, so readers never observe partial audio
// and concurrent writers of the same key converge on identical content.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", domain.ErrCacheIO, err)
	}
	log.Info("Audio file cache ready", zap.String("dir", dir))
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+domain.AudioExtension)
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return data, nil
}

func (s *FileStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}

	out, err := os.CreateTemp(s.dir, entry.Key+".*.part")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	tmp := out.Name()
	defer os.Remove(tmp)

	_, werr := io.Copy(out, bytes.NewReader(entry.Audio))
	cerr := out.Close()
	if werr != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, cerr)
	}
	if !entry.CreatedAt.IsZero() {
		_ = os.Chtimes(tmp, entry.CreatedAt, entry.CreatedAt)
	}
	if err := os.Rename(tmp, s.path(entry.Key)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return nil
}

func (s *FileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return f, nil
}

// EvictOlderThan removes audio and leftover .part files last modified before
// cutoff.
func (s *FileStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, domain.AudioExtension) || strings.HasSuffix(name, ".part")) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to remove cached audio", zap.String("file", name), zap.Error(err))
			continue
		}
		if strings.HasSuffix(name, domain.AudioExtension) {
			removed++
		}
	}
	return removed, nil
}

func (s *FileStore) Size(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), domain.AudioExtension) {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// Check verifies the directory is writable.
func (s *FileStore) Check(ctx context.Context) error {
	f, err := os.CreateTemp(s.dir, "probe.*.part")
	if err != nil {
		return fmt.Errorf("%w: cache dir not writable: %v", domain.ErrCacheIO, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
