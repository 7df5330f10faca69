package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/voz-visible/internal/domain"
)

const maxLedgerLimit = 1000

// Translations lists recorded translations, newest first.
func (h *PredictionHandler) Translations(c *fiber.Ctx) error {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		return err
	}
	records, err := h.service.QueryLedger(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":       "success",
		"count":        len(records),
		"translations": records,
	})
}

func (h *PredictionHandler) TranslationStats(c *fiber.Ctx) error {
	stats, err := h.service.LedgerStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"stats":  stats,
	})
}

func parseLedgerFilter(c *fiber.Ctx) (domain.LedgerFilter, error) {
	filter := domain.LedgerFilter{Limit: c.QueryInt("limit", domain.DefaultLedgerLimit)}
	if filter.Limit <= 0 || filter.Limit > maxLedgerLimit {
		return filter, fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 1000")
	}

	if id := c.Query("session_id"); id != "" {
		if !ValidSessionID(id) {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid session_id")
		}
		filter.SessionID = id
	}

	var err error
	if filter.Start, err = queryTime(c, "start"); err != nil {
		return filter, err
	}
	if filter.End, err = queryTime(c, "end"); err != nil {
		return filter, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return filter, fiber.NewError(fiber.StatusBadRequest, "end must not be before start")
	}
	return filter, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be an ISO 8601 timestamp")
}
