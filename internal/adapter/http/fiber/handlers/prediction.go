package handlers

import (
	"encoding/base64"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// HeaderSessionID lets clients send the session id outside the body.
const HeaderSessionID = "X-Session-ID"

type PredictionHandler struct {
	service ports.PredictionService
	limits  Limits
	log     *zap.Logger
}

func NewPredictionHandler(service ports.PredictionService, limits Limits, log *zap.Logger) *PredictionHandler {
	return &PredictionHandler{
		service: service,
		limits:  limits.withDefaults(),
		log:     log,
	}
}

type PredictRequest struct {
	Image            string `json:"image" validate:"required"`
	SessionID        string `json:"session_id" validate:"omitempty,session_id"`
	IncludeLandmarks bool   `json:"include_landmarks"`
}

type LandmarksRequest struct {
	Landmarks        *domain.DetectorOutput `json:"landmarks" validate:"required"`
	SessionID        string                 `json:"session_id" validate:"omitempty,session_id"`
	IncludeLandmarks bool                   `json:"include_landmarks"`
}

// Status reports orchestrator readiness. It is always 200 so clients can
// poll it while the model loads.
func (h *PredictionHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}

func (h *PredictionHandler) ModelInfo(c *fiber.Ctx) error {
	info, err := h.service.ModelInfo()
	if err != nil {
		return err
	}
	return c.JSON(info)
}

// Predict handles a base64 or data URI frame.
func (h *PredictionHandler) Predict(c *fiber.Ctx) error {
	var req PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return err
	}
	if !h.service.IsReady() {
		return notReady()
	}

	raw, contentType, err := DecodeImage(req.Image, h.limits)
	if err != nil {
		return err
	}

	opts, err := h.options(c, req.SessionID, req.IncludeLandmarks)
	if err != nil {
		return err
	}
	res, err := h.service.Handle(c.UserContext(), domain.Frame{Data: raw, ContentType: contentType}, opts)
	if err != nil {
		h.log.Warn("Prediction failed", zap.String("session_id", opts.SessionID), zap.Error(err))
		return err
	}
	return h.render(c, res)
}

// PredictLandmarks classifies landmarks extracted by the caller.
func (h *PredictionHandler) PredictLandmarks(c *fiber.Ctx) error {
	var req LandmarksRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	opts, err := h.options(c, req.SessionID, req.IncludeLandmarks)
	if err != nil {
		return err
	}
	res, err := h.service.HandleLandmarks(c.UserContext(), req.Landmarks, opts)
	if err != nil {
		h.log.Warn("Landmark prediction failed", zap.String("session_id", opts.SessionID), zap.Error(err))
		return err
	}
	return h.render(c, res)
}

// Upload handles a multipart "file" frame.
func (h *PredictionHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fh.Size > int64(h.limits.MaxImageBytes) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}
	if !h.service.IsReady() {
		return notReady()
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, int64(h.limits.MaxImageBytes)+1))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	contentType, err := checkImage(raw, h.limits)
	if err != nil {
		return err
	}

	opts, err := h.options(c, c.FormValue("session_id"), c.FormValue("include_landmarks") == "true")
	if err != nil {
		return err
	}
	res, err := h.service.Handle(c.UserContext(), domain.Frame{Data: raw, ContentType: contentType}, opts)
	if err != nil {
		h.log.Warn("Upload prediction failed", zap.String("file", fh.Filename), zap.Error(err))
		return err
	}
	return h.render(c, res)
}

func (h *PredictionHandler) options(c *fiber.Ctx, sessionID string, extras bool) (ports.HandleOptions, error) {
	if sessionID == "" {
		sessionID = c.Get(HeaderSessionID)
	}
	if sessionID != "" && !ValidSessionID(sessionID) {
		return ports.HandleOptions{}, fiber.NewError(fiber.StatusBadRequest, "session_id must be 1-100 letters, digits, '_' or '-'")
	}
	return ports.HandleOptions{
		SessionID:     sessionID,
		UserID:        middleware.UserID(c),
		IncludeExtras: extras,
	}, nil
}

func (h *PredictionHandler) render(c *fiber.Ctx, res domain.HandleResult) error {
	switch res.Status {
	case domain.StatusUnavailable:
		return notReady()
	case domain.StatusSkipped:
		return c.JSON(fiber.Map{"status": "waiting"})
	}
	return c.JSON(PredictionBody(res.Response))
}

// PredictionBody is the JSON shape of a served prediction, shared with the
// camera socket.
func PredictionBody(r *domain.PredictionResponse) fiber.Map {
	body := fiber.Map{
		"status":           "success",
		"word":             r.Label,
		"confidence":       r.Confidence,
		"timestamp":        unixSeconds(r.Timestamp),
		"response_time_ms": r.ResponseTimeMs,
	}
	if r.HasAudio() {
		body["audio"] = base64.StdEncoding.EncodeToString(r.Audio)
	}
	if r.Landmarks != nil {
		body["landmarks"] = r.Landmarks
	}
	return body
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func notReady() error {
	return fiber.NewError(fiber.StatusServiceUnavailable, "Sistema no disponible")
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
