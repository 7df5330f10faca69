package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(newTestLogger())})
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	return m
}

func TestErrorHandler_MapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: boom", domain.ErrPredictionFailed), 500},
		{domain.ErrClassifierUnavailable, 503},
		{domain.ErrEmptyText, 400},
		{domain.ErrCacheMiss, 404},
		{domain.ErrSynthesisFailed, 502},
		{fiber.NewError(fiber.StatusTeapot, "tea"), 418},
		{errors.New("anything"), 500},
	}

	for _, tc := range cases {
		app := newApp()
		app.Get("/", func(c *fiber.Ctx) error { return tc.err })

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, resp.StatusCode)
		}
		body := decode(t, resp.Body)
		if body["status"] != "error" || body["message"] == "" {
			t.Errorf("%v: unexpected body %v", tc.err, body)
		}
	}
}

func TestErrorHandler_PredictionFailedMessage(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: onnx exploded", domain.ErrPredictionFailed)
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))

	body := decode(t, resp.Body)
	if body["message"] != "prediction failed" {
		t.Errorf("expected internal detail hidden, got %v", body["message"])
	}
}

func TestOptionalAuth(t *testing.T) {
	// Arrange
	validator := &mocks.MockTokenValidator{
		ValidateTokenFunc: func(ctx context.Context, token string) (string, error) {
			if token == "good" {
				return "user-7", nil
			}
			return "", errors.New("bad token")
		},
	}
	app := newApp()
	app.Use(OptionalAuth(validator))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", 200, ""},
		{"Bearer good", 200, "user-7"},
		{"Bearer bad", 401, ""},
		{"Basic abc", 401, ""},
	}

	for _, tc := range cases {
		// Act
		req := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}

		// Assert
		if resp.StatusCode != tc.status {
			t.Errorf("%q: expected %d, got %d", tc.header, tc.status, resp.StatusCode)
		}
		if tc.status == 200 {
			b, _ := io.ReadAll(resp.Body)
			if string(b) != tc.body {
				t.Errorf("%q: expected user %q, got %q", tc.header, tc.body, b)
			}
		}
	}
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	// Arrange
	app := newApp()
	app.Use(CircuitBreaker("test", newTestLogger()))
	app.Get("/", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: detector down", domain.ErrPredictionFailed)
	})

	// Act
	for i := 0; i < 10; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		if resp.StatusCode != 500 {
			t.Fatalf("call %d: expected 500 while closed, got %d", i, resp.StatusCode)
		}
	}
	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))

	// Assert
	if resp.StatusCode != 503 {
		t.Errorf("expected 503 once open, got %d", resp.StatusCode)
	}
}
