package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/mocks"
	"github.com/seu-repo/voz-visible/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestApp(svc ports.PredictionService) *fiber.App {
	log := newTestLogger()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	api := app.Group("/api", middleware.OptionalAuth(&mocks.MockTokenValidator{}))
	NewPredictionHandler(svc, Limits{}, log).Register(api)
	return app
}

// noisePNG returns a PNG comfortably above the minimum image size.
func noisePNG(t *testing.T) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func served(label string, audio []byte) domain.HandleResult {
	return domain.HandleResult{
		Status: domain.StatusServed,
		Response: &domain.PredictionResponse{
			Label:          label,
			Confidence:     0.9,
			ResponseTimeMs: 12.5,
			Timestamp:      time.Unix(1700000000, 0),
			Audio:          audio,
			AudioMIME:      domain.AudioMIME,
		},
	}
}

func TestPredict_Served(t *testing.T) {
	// Arrange
	img := noisePNG(t)
	svc := &mocks.MockPredictionService{
		Ready: true,
		HandleFunc: func(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
			if !bytes.Equal(frame.Data, img) || frame.ContentType != "image/png" {
				return domain.HandleResult{}, errors.New("frame not decoded")
			}
			return served("hola", []byte("mp3")), nil
		},
	}
	app := newTestApp(svc)
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)

	// Act
	status, body := postJSON(t, app, "/api/predict",
		fiber.Map{"image": dataURI, "session_id": "cam_1"},
		"Authorization", "Bearer abc")

	// Assert
	if status != 200 {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["status"] != "success" || body["word"] != "hola" {
		t.Errorf("unexpected body %v", body)
	}
	if body["audio"] != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Errorf("expected base64 audio, got %v", body["audio"])
	}
	if body["timestamp"].(float64) != 1700000000 {
		t.Errorf("expected unix timestamp, got %v", body["timestamp"])
	}
	opts := svc.Handled()[0]
	if opts.SessionID != "cam_1" || opts.UserID != "user-abc" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestPredict_NoAudioKeyWhenSynthesisFailed(t *testing.T) {
	svc := &mocks.MockPredictionService{
		Ready: true,
		HandleFunc: func(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
			return served("gracias", nil), nil
		},
	}
	app := newTestApp(svc)

	status, body := postJSON(t, app, "/api/predict", fiber.Map{"image": base64.StdEncoding.EncodeToString(noisePNG(t))})

	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if _, ok := body["audio"]; ok {
		t.Error("expected no audio key")
	}
}

func TestPredict_SkippedIsWaiting(t *testing.T) {
	svc := &mocks.MockPredictionService{Ready: true}
	app := newTestApp(svc)

	status, body := postJSON(t, app, "/api/predict", fiber.Map{"image": base64.StdEncoding.EncodeToString(noisePNG(t))})

	if status != 200 || body["status"] != "waiting" {
		t.Errorf("expected 200 waiting, got %d %v", status, body)
	}
}

func TestPredict_NotReady(t *testing.T) {
	svc := &mocks.MockPredictionService{Ready: false}
	app := newTestApp(svc)

	status, body := postJSON(t, app, "/api/predict", fiber.Map{"image": base64.StdEncoding.EncodeToString(noisePNG(t))})

	if status != 503 {
		t.Errorf("expected 503, got %d", status)
	}
	if body["status"] != "error" {
		t.Errorf("expected error envelope, got %v", body)
	}
	if len(svc.Handled()) != 0 {
		t.Error("expected orchestrator not to be called")
	}
}

func TestPredict_PredictionFailed(t *testing.T) {
	svc := &mocks.MockPredictionService{
		Ready: true,
		HandleFunc: func(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
			return domain.HandleResult{}, fmt.Errorf("%w: tensor shape", domain.ErrPredictionFailed)
		},
	}
	app := newTestApp(svc)

	status, body := postJSON(t, app, "/api/predict", fiber.Map{"image": base64.StdEncoding.EncodeToString(noisePNG(t))})

	if status != 500 || body["message"] != "prediction failed" {
		t.Errorf("expected 500 prediction failed, got %d %v", status, body)
	}
}

func TestPredict_InvalidInput(t *testing.T) {
	svc := &mocks.MockPredictionService{Ready: true}
	app := newTestApp(svc)
	img := base64.StdEncoding.EncodeToString(noisePNG(t))

	cases := []struct {
		name   string
		body   fiber.Map
		status int
	}{
		{"missing image", fiber.Map{}, 400},
		{"bad base64", fiber.Map{"image": "!!!not-base64!!!"}, 400},
		{"too small", fiber.Map{"image": base64.StdEncoding.EncodeToString([]byte("tiny"))}, 400},
		{"not an image", fiber.Map{"image": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("a"), 2048))}, 415},
		{"bad session", fiber.Map{"image": img, "session_id": "has spaces"}, 400},
		{"long session", fiber.Map{"image": img, "session_id": strings.Repeat("a", 101)}, 400},
	}

	for _, tc := range cases {
		status, _ := postJSON(t, app, "/api/predict", tc.body)
		if status != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.status, status)
		}
	}
	if len(svc.Handled()) != 0 {
		t.Error("expected invalid input never to reach the orchestrator")
	}
}

func TestPredictLandmarks_IncludeLandmarks(t *testing.T) {
	// Arrange
	svc := &mocks.MockPredictionService{
		Ready: true,
		HandleLandmarksFunc: func(ctx context.Context, out *domain.DetectorOutput, opts ports.HandleOptions) (domain.HandleResult, error) {
			res := served("si", nil)
			if opts.IncludeExtras {
				res.Response.Landmarks = out
			}
			return res, nil
		},
	}
	app := newTestApp(svc)
	payload := fiber.Map{
		"landmarks": fiber.Map{
			"right_hand_landmarks": []fiber.Map{{"x": 0.1, "y": 0.2, "z": 0.3}},
		},
		"include_landmarks": true,
	}

	// Act
	status, body := postJSON(t, app, "/api/predict/landmarks", payload, HeaderSessionID, "hdr-session")

	// Assert
	if status != 200 {
		t.Fatalf("expected 200, got %d %v", status, body)
	}
	if _, ok := body["landmarks"]; !ok {
		t.Error("expected landmarks echoed")
	}
	if svc.Handled()[0].SessionID != "hdr-session" {
		t.Errorf("expected session from header, got %q", svc.Handled()[0].SessionID)
	}
}

func TestUpload_Multipart(t *testing.T) {
	// Arrange
	svc := &mocks.MockPredictionService{
		Ready: true,
		HandleFunc: func(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
			return served("hola", nil), nil
		},
	}
	app := newTestApp(svc)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "frame.png")
	_, _ = part.Write(noisePNG(t))
	_ = w.WriteField("session_id", "upload-1")
	_ = w.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	// Act
	resp, err := app.Test(req)

	// Assert
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, b)
	}
	if svc.Handled()[0].SessionID != "upload-1" {
		t.Errorf("expected session from form, got %+v", svc.Handled()[0])
	}
}

func TestSynthesize(t *testing.T) {
	svc := &mocks.MockPredictionService{
		SynthesizeTextFunc: func(ctx context.Context, text string, format domain.AudioFormat) (*domain.SynthesisResponse, error) {
			res := &domain.SynthesisResponse{Text: text, Timestamp: time.Now()}
			if format == domain.AudioFormatURL {
				res.URL = "/api/tts/file/abc.mp3"
			} else {
				res.Audio = []byte("mp3")
			}
			return res, nil
		},
	}
	app := newTestApp(svc)

	status, body := postJSON(t, app, "/api/tts", fiber.Map{"text": "  hola  ", "format": "url"})
	if status != 200 || body["audio_url"] != "/api/tts/file/abc.mp3" || body["text"] != "hola" {
		t.Errorf("unexpected url response %d %v", status, body)
	}

	status, body = postJSON(t, app, "/api/tts", fiber.Map{"text": "hola"})
	if status != 200 || body["audio"] == nil {
		t.Errorf("unexpected base64 response %d %v", status, body)
	}

	status, _ = postJSON(t, app, "/api/tts", fiber.Map{"text": "   "})
	if status != 400 {
		t.Errorf("expected 400 for blank text, got %d", status)
	}

	status, _ = postJSON(t, app, "/api/tts", fiber.Map{"text": strings.Repeat("ñ", 501)})
	if status != 400 {
		t.Errorf("expected 400 for 501 runes, got %d", status)
	}

	status, _ = postJSON(t, app, "/api/tts", fiber.Map{"text": strings.Repeat("ñ", 500)})
	if status != 200 {
		t.Errorf("expected 500 runes accepted, got %d", status)
	}

	status, _ = postJSON(t, app, "/api/tts", fiber.Map{"text": "hola", "format": "wav"})
	if status != 400 {
		t.Errorf("expected 400 for unknown format, got %d", status)
	}
}

func TestAudioFile(t *testing.T) {
	svc := &mocks.MockPredictionService{
		OpenAudioFunc: func(ctx context.Context, fileName string) ([]byte, error) {
			if fileName == "known.mp3" {
				return []byte("mp3-bytes"), nil
			}
			return nil, domain.ErrCacheMiss
		},
	}
	app := newTestApp(svc)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/tts/file/known.mp3", nil))
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != domain.AudioMIME {
		t.Errorf("expected audio, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/tts/file/other.mp3", nil))
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestTranslations_Filter(t *testing.T) {
	// Arrange
	var got domain.LedgerFilter
	svc := &mocks.MockPredictionService{
		QueryLedgerFunc: func(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
			got = filter
			return []domain.TranslationRecord{{Text: "hola"}}, nil
		},
	}
	app := newTestApp(svc)

	// Act
	resp, _ := app.Test(httptest.NewRequest("GET", "/api/translations?limit=5&session_id=s1&start=2024-01-01&end=2024-01-02T00:00:00Z", nil))

	// Assert
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got.Limit != 5 || got.SessionID != "s1" || got.Start == nil || got.End == nil {
		t.Errorf("unexpected filter %+v", got)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/translations?start=yesterday", nil))
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for bad start, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/translations?limit=0", nil))
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for zero limit, got %d", resp.StatusCode)
	}
}

func TestTranslationStats_Unavailable(t *testing.T) {
	svc := &mocks.MockPredictionService{
		LedgerStatsFunc: func(ctx context.Context) (*domain.LedgerStats, error) {
			return nil, domain.ErrLedgerUnavailable
		},
	}
	app := newTestApp(svc)

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/translations/stats", nil))

	if resp.StatusCode != 503 {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestStatus_AlwaysOK(t *testing.T) {
	app := newTestApp(&mocks.MockPredictionService{Ready: false})

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/status", nil))

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
