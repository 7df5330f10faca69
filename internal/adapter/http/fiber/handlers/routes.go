package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Register mounts the prediction API under r. guards run only in front of
// the routes that reach the detector and classifier.
func (h *PredictionHandler) Register(r fiber.Router, guards ...fiber.Handler) {
	guarded := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler(nil), guards...), handler)
	}

	r.Get("/status", h.Status)
	r.Get("/model-info", h.ModelInfo)

	r.Post("/predict", guarded(h.Predict)...)
	r.Post("/predict/landmarks", guarded(h.PredictLandmarks)...)
	r.Post("/upload", guarded(h.Upload)...)

	r.Post("/tts", h.Synthesize)
	r.Get("/tts/file/:filename", h.AudioFile)

	r.Get("/translations", h.Translations)
	r.Get("/translations/stats", h.TranslationStats)
}
