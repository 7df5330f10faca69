package flatfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// Header is the fixed column layout of the flat ledger.
var Header = []string{"timestamp", "text_translated", "confidence", "response_time_ms", "session_id", "user_id"}

// CSVSink appends ledger rows to a single CSV file. Writers are serialized so
// concurrent appends never interleave within a line.
type CSVSink struct {
	mu   sync.Mutex
	path string
	log  *zap.Logger
}

// NewCSVSink creates the directory and writes the header when the file is
// new.
func NewCSVSink(path string, log *zap.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	s := &CSVSink{path: path, log: log}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := s.appendRows(Header); err != nil {
			return nil, err
		}
		log.Info("Created translation ledger file", zap.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("stat ledger file: %w", err)
	case info.Size() == 0:
		if err := s.appendRows(Header); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Path() string {
	return s.path
}

func (s *CSVSink) Append(ctx context.Context, rec *domain.TranslationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.appendRows(Row(rec))
}

func (s *CSVSink) appendRows(rows ...[]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	return nil
}

// Row renders a record in Header order. Absent ids are written as empty
// cells.
func Row(rec *domain.TranslationRecord) []string {
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.Text,
		strconv.FormatFloat(rec.Confidence, 'f', -1, 64),
		strconv.FormatInt(rec.ResponseTimeMs, 10),
		deref(rec.SessionID),
		deref(rec.UserID),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
