package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// maxAudioBytes caps a single synthesized utterance.
const maxAudioBytes = 5 << 20

type synthRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
	Slow bool   `json:"slow"`
}

// Client calls the speech synthesis sidecar through a circuit breaker, so a
// failing backend is skipped quickly instead of holding every request for the
// full timeout.
type Client struct {
	baseURL string
	c       *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cl := &Client{
		baseURL: baseURL,
		c: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	cl.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tts",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return cl
}

func (cl *Client) Synthesize(ctx context.Context, text, locale string, slow bool) ([]byte, error) {
	out, err := cl.cb.Execute(func() (interface{}, error) {
		return cl.synthesize(ctx, text, locale, slow)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: backend circuit open", domain.ErrSynthesisFailed)
		}
		return nil, err
	}
	return out.([]byte), nil
}

func (cl *Client) synthesize(ctx context.Context, text, locale string, slow bool) ([]byte, error) {
	b, _ := json.Marshal(synthRequest{Text: text, Lang: locale, Slow: slow})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.baseURL+"/synthesize", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", domain.AudioMIME)

	resp, err := cl.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts %s: %s", resp.Status, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("tts read: %w", err)
	}
	return audio, nil
}

// Check pings the sidecar health endpoint.
func (cl *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cl.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := cl.c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: tts health %s", domain.ErrSynthesisFailed, resp.Status)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (cl *Client) State() string {
	return cl.cb.State().String()
}
