package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDetect_DecodesLandmarks(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.DetectorOutput{
			RightHand: []domain.Landmark{{X: 0.1, Y: 0.2, Z: 0.3}},
		})
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0, time.Second, newTestLogger())

	// Act
	out, err := c.Detect(context.Background(), domain.Frame{Data: []byte("raw"), ContentType: "image/jpeg"})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out.RightHand) != 1 || out.RightHand[0].Z != 0.3 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestDetect_DownscalesWideFrames(t *testing.T) {
	// Arrange
	var gotWidth int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
		if err == nil {
			gotWidth = cfg.Width
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 320, time.Second, newTestLogger())

	// Act
	_, err := c.Detect(context.Background(), domain.Frame{Data: jpegFrame(t, 1280, 720)})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotWidth != 320 {
		t.Errorf("expected frame scaled to 320px, got %d", gotWidth)
	}
}

func TestDetect_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no image", http.StatusBadRequest)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0, time.Second, newTestLogger())

	_, err := c.Detect(context.Background(), domain.Frame{Data: []byte("x")})

	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestDetect_RetriesServerErrors(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.DetectorOutput{
			LeftHand: []domain.Landmark{{X: 0.5}},
		})
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0, time.Second, newTestLogger())

	// Act
	out, err := c.Detect(context.Background(), domain.Frame{Data: []byte("raw")})

	// Assert
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if len(out.LeftHand) != 1 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestDetect_RetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0, time.Second, newTestLogger())

	_, err := c.Detect(context.Background(), domain.Frame{Data: []byte("raw")})

	if err == nil {
		t.Fatal("expected error once retries run out")
	}
	if calls.Load() != 1+detectRetries {
		t.Errorf("expected %d attempts, got %d", 1+detectRetries, calls.Load())
	}
}

func TestDetect_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no image", http.StatusBadRequest)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0, time.Second, newTestLogger())

	_, err := c.Detect(context.Background(), domain.Frame{Data: []byte("raw")})

	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if err := NewClient(healthy.URL, 0, time.Second, newTestLogger()).Check(context.Background()); err != nil {
		t.Errorf("expected healthy sidecar, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := NewClient("http://127.0.0.1:1", 0, 50*time.Millisecond, newTestLogger()).Check(ctx)
	if !errors.Is(err, domain.ErrDetectionFailed) {
		t.Errorf("expected ErrDetectionFailed, got %v", err)
	}
}
