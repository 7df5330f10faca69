package handlers

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

type TTSRequest struct {
	Text   string `json:"text" validate:"required"`
	Format string `json:"format" validate:"omitempty,oneof=base64 url"`
}

// Synthesize speaks arbitrary text.
func (h *PredictionHandler) Synthesize(c *fiber.Ctx) error {
	var req TTSRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Text = trimmed(req.Text)
	if err := validateStruct(&req); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Text) > h.limits.MaxTextLength {
		return fiber.NewError(fiber.StatusBadRequest, "text is too long")
	}

	format := domain.AudioFormatBase64
	if req.Format != "" {
		format = domain.AudioFormat(req.Format)
	}

	res, err := h.service.SynthesizeText(c.UserContext(), req.Text, format)
	if err != nil {
		h.log.Warn("Speech synthesis failed", zap.Int("runes", utf8.RuneCountInString(req.Text)), zap.Error(err))
		return err
	}

	body := fiber.Map{
		"status":    "success",
		"text":      res.Text,
		"cached":    res.Cached,
		"timestamp": unixSeconds(res.Timestamp),
	}
	if res.URL != "" {
		body["audio_url"] = res.URL
	} else {
		body["audio"] = base64.StdEncoding.EncodeToString(res.Audio)
	}
	return c.JSON(body)
}

// AudioFile serves cached audio by digest file name.
func (h *PredictionHandler) AudioFile(c *fiber.Ctx) error {
	audio, err := h.service.OpenAudio(c.UserContext(), c.Params("filename"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, domain.AudioMIME)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(audio)
}
