package integration

import (
	"context"
	"testing"
	"time"

	"github.com/seu-repo/voz-visible/internal/adapter/storage/postgres"
	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/mocks"
	"github.com/seu-repo/voz-visible/internal/service/ledger"
)

func seedRecords(t *testing.T, l *ledger.Ledger, base time.Time) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		text    string
		conf    float64
		ms      int64
		session string
		offset  time.Duration
	}{
		{"hola", 0.9, 40, "s1", 0},
		{"gracias", 0.7, 60, "s1", time.Minute},
		{"adios", 0.8, 50, "s2", 2 * time.Minute},
	}
	for _, r := range rows {
		report := l.Record(ctx, &domain.TranslationRecord{
			Timestamp:      base.Add(r.offset),
			Text:           r.text,
			Confidence:     r.conf,
			ResponseTimeMs: r.ms,
			SessionID:      domain.OptionalString(r.session),
		})
		if !report.OK() {
			t.Fatalf("Record(%q) failed: %+v", r.text, report)
		}
	}
}

func TestLedger_PostgresQueryAndStats(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	repo := postgres.NewTranslationRepository(env.Gorm, env.Logger)
	l := ledger.New(nil, repo, nil, env.Logger)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedRecords(t, l, base)
	ctx := context.Background()

	t.Run("NewestFirst", func(t *testing.T) {
		records, err := l.Query(ctx, domain.LedgerFilter{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(records))
		}
		if records[0].Text != "adios" || records[2].Text != "hola" {
			t.Errorf("Unexpected order: %s, %s, %s", records[0].Text, records[1].Text, records[2].Text)
		}
	})

	t.Run("SessionFilter", func(t *testing.T) {
		records, err := l.Query(ctx, domain.LedgerFilter{SessionID: "s1"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records for s1, got %d", len(records))
		}
	})

	t.Run("TimeWindowAndLimit", func(t *testing.T) {
		start := base.Add(30 * time.Second)
		records, err := l.Query(ctx, domain.LedgerFilter{Start: &start, Limit: 1})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(records) != 1 || records[0].Text != "adios" {
			t.Errorf("Expected only the newest record in window, got %+v", records)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := l.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.TotalCount != 3 {
			t.Errorf("Expected 3 translations, got %d", stats.TotalCount)
		}
		if stats.MeanConfidence != 0.8 {
			t.Errorf("Expected mean confidence 0.8, got %v", stats.MeanConfidence)
		}
		if stats.MeanResponseTimeMs != 50 {
			t.Errorf("Expected mean response time 50, got %v", stats.MeanResponseTimeMs)
		}
		if stats.LastRecord == nil || stats.LastRecord.Text != "adios" {
			t.Errorf("Expected last record adios, got %+v", stats.LastRecord)
		}
	})
}

func TestLedger_PublishesRecordedEvents(t *testing.T) {
	env := SetupTestEnvironment(t)
	CleanDatabase(t, env.DB)

	mq := mocks.NewMockMessageQueue()
	received := make(chan []byte, 1)
	_ = mq.Subscribe(ledger.SubjectRecorded, func(data []byte) error {
		received <- data
		return nil
	})

	repo := postgres.NewTranslationRepository(env.Gorm, env.Logger)
	l := ledger.New(nil, repo, mq, env.Logger)
	seedRecords(t, l, time.Now().UTC())

	select {
	case data := <-received:
		if len(data) == 0 {
			t.Error("Expected event payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a translations.recorded event")
	}
}
