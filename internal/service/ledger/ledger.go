package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/observability/telemetry"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// SubjectRecorded is published after a record reaches at least one sink.
const SubjectRecorded = "translations.recorded"

// WriteReport tells the caller which sinks failed. Record never returns an
// error; the report exists for logging and tests.
type WriteReport struct {
	FlatErr  error
	StoreErr error
}

// OK reports whether both sinks accepted the record.
func (r WriteReport) OK() bool {
	return r.FlatErr == nil && r.StoreErr == nil
}

// Ledger writes every record to a flat sink and an indexed repository. Reads
// are served by the repository only.
type Ledger struct {
	flat  ports.TranslationSink
	store ports.TranslationRepository
	mq    ports.MessageQueue
	log   *zap.Logger
}

// New builds a ledger. flat and mq may be nil.
func New(flat ports.TranslationSink, store ports.TranslationRepository, mq ports.MessageQueue, log *zap.Logger) *Ledger {
	return &Ledger{
		flat:  flat,
		store: store,
		mq:    mq,
		log:   log,
	}
}

// Record appends rec to both sinks independently.
func (l *Ledger) Record(ctx context.Context, rec *domain.TranslationRecord) WriteReport {
	var report WriteReport

	if l.flat != nil {
		report.FlatErr = l.write(ctx, l.flat, rec)
	}
	if l.store != nil {
		report.StoreErr = l.write(ctx, l.store, rec)
	} else {
		report.StoreErr = fmt.Errorf("%w: no structured sink", domain.ErrLedgerWriteFailed)
	}

	if report.FlatErr != nil && report.StoreErr != nil {
		l.log.Error("Translation record lost",
			zap.String("text", rec.Text),
			zap.NamedError("flat_error", report.FlatErr),
			zap.NamedError("store_error", report.StoreErr),
		)
		return report
	}

	l.publish(rec)
	return report
}

func (l *Ledger) write(ctx context.Context, sink ports.TranslationSink, rec *domain.TranslationRecord) error {
	if err := sink.Append(ctx, rec); err != nil {
		telemetry.LedgerWrites.WithLabelValues(sink.Name(), "error").Inc()
		l.log.Warn("Ledger sink write failed",
			zap.String("sink", sink.Name()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", domain.ErrLedgerWriteFailed, sink.Name(), err)
	}
	telemetry.LedgerWrites.WithLabelValues(sink.Name(), "ok").Inc()
	return nil
}

func (l *Ledger) publish(rec *domain.TranslationRecord) {
	if l.mq == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := l.mq.Publish(SubjectRecorded, data); err != nil {
		l.log.Warn("Failed to publish translation event", zap.Error(err))
	}
}

// Query returns records newest first. A zero limit means DefaultLedgerLimit.
func (l *Ledger) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
	if l.store == nil {
		return nil, domain.ErrLedgerUnavailable
	}
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultLedgerLimit
	}
	return l.store.Query(ctx, filter)
}

// Stats aggregates the ledger. Means are rounded for presentation.
func (l *Ledger) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	if l.store == nil {
		return nil, domain.ErrLedgerUnavailable
	}
	stats, err := l.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.MeanConfidence = round(stats.MeanConfidence, 4)
	stats.MeanResponseTimeMs = round(stats.MeanResponseTimeMs, 2)
	return stats, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
