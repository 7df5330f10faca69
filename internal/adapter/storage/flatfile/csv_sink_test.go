package flatfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestCSVSink_HeaderAndRows(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "logs", "translations.csv")
	sink, err := NewCSVSink(path, newTestLogger())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Act
	err = sink.Append(context.Background(), &domain.TranslationRecord{
		Timestamp:      ts,
		Text:           "hola, amigo",
		Confidence:     0.875,
		ResponseTimeMs: 42,
		SessionID:      domain.OptionalString("s1"),
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	rows := readAll(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[0][1] != "text_translated" || len(rows[0]) != 6 {
		t.Errorf("unexpected header %v", rows[0])
	}
	want := []string{"2024-05-01T12:00:00Z", "hola, amigo", "0.875", "42", "s1", ""}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("column %d: expected %q, got %q", i, want[i], rows[1][i])
		}
	}
}

func TestCSVSink_ReopenDoesNotRepeatHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translations.csv")
	s1, _ := NewCSVSink(path, newTestLogger())
	_ = s1.Append(context.Background(), &domain.TranslationRecord{Timestamp: time.Now(), Text: "a"})

	s2, err := NewCSVSink(path, newTestLogger())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_ = s2.Append(context.Background(), &domain.TranslationRecord{Timestamp: time.Now(), Text: "b"})

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Errorf("expected header plus two rows, got %d", len(rows))
	}
}

func TestCSVSink_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translations.csv")
	sink, _ := NewCSVSink(path, newTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Append(context.Background(), &domain.TranslationRecord{Timestamp: time.Now(), Text: "gracias"})
		}()
	}
	wg.Wait()

	rows := readAll(t, path)
	if len(rows) != 51 {
		t.Fatalf("expected 51 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if len(r) != 6 {
			t.Fatalf("expected 6 columns, got %v", r)
		}
	}
}
