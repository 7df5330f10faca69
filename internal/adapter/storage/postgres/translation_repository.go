package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/ports"
)

type TranslationRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTranslationRepository(db *gorm.DB, log *zap.Logger) ports.TranslationRepository {
	return &TranslationRepository{
		db:  db,
		log: log,
	}
}

func (r *TranslationRepository) Name() string {
	return "postgres"
}

// Append inserts a new row. Records are never updated, so Create is used
// instead of Save.
func (r *TranslationRepository) Append(ctx context.Context, rec *domain.TranslationRecord) error {
	rec.ID = 0
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *TranslationRepository) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultLedgerLimit
	}

	q := r.db.WithContext(ctx).Model(&domain.TranslationRecord{})
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.Start != nil {
		q = q.Where(`"timestamp" >= ?`, *filter.Start)
	}
	if filter.End != nil {
		q = q.Where(`"timestamp" <= ?`, *filter.End)
	}

	records := []domain.TranslationRecord{}
	err := q.Order(`"timestamp" desc`).Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

type aggregates struct {
	Total         int64
	AvgConfidence float64
	AvgResponseMs float64
}

func (r *TranslationRepository) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	var agg aggregates
	err := r.db.WithContext(ctx).Model(&domain.TranslationRecord{}).
		Select("COUNT(*) AS total, COALESCE(AVG(confidence), 0) AS avg_confidence, COALESCE(AVG(response_time_ms), 0) AS avg_response_ms").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	stats := &domain.LedgerStats{
		TotalCount:         agg.Total,
		MeanConfidence:     agg.AvgConfidence,
		MeanResponseTimeMs: agg.AvgResponseMs,
	}
	if agg.Total == 0 {
		return stats, nil
	}

	var last domain.TranslationRecord
	err = r.db.WithContext(ctx).Order(`"timestamp" desc`).Order("id desc").First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, nil
		}
		return nil, err
	}
	stats.LastRecord = &last
	return stats, nil
}
