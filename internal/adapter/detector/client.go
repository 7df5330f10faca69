package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nfnt/resize"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// Client calls the landmark detection sidecar. Frames wider than MaxWidth are
// downscaled before upload.
type Client struct {
	baseURL  string
	maxWidth uint
	c        *http.Client
	log      *zap.Logger
}

func NewClient(baseURL string, maxWidth uint, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		maxWidth: maxWidth,
		c: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// Detect posts the frame to the sidecar. Transport failures and 5xx replies
// are retried up to detectRetries times within ctx; other failures are not.
func (cl *Client) Detect(ctx context.Context, frame domain.Frame) (*domain.DetectorOutput, error) {
	body, contentType, err := cl.prepare(frame)
	if err != nil {
		return nil, err
	}

	var out domain.DetectorOutput
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.baseURL+"/detect", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := cl.c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("detector %s: %s", resp.Status, string(msg))
			if resp.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("detector decode: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		cl.log.Debug("Retrying landmark detection", zap.Error(err), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, cl.detectBackOff(ctx), notify); err != nil {
		return nil, err
	}
	return &out, nil
}

const detectRetries = 2

func (cl *Client) detectBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, detectRetries), ctx)
}

// prepare downscales oversized frames and re-encodes them as JPEG. Frames
// already within bounds, or in a format we cannot decode here (webp), are
// sent untouched.
func (cl *Client) prepare(frame domain.Frame) ([]byte, string, error) {
	contentType := frame.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(frame.Data)
	}
	if cl.maxWidth == 0 {
		return frame.Data, contentType, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil || uint(cfg.Width) <= cl.maxWidth {
		return frame.Data, contentType, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, "", fmt.Errorf("detector: unreadable frame: %w", err)
	}
	scaled := resize.Resize(cl.maxWidth, 0, img, resize.Bilinear)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", fmt.Errorf("detector: encode frame: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// Check waits briefly for the sidecar health endpoint.
func (cl *Client) Check(ctx context.Context) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cl.baseURL+"/health", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := cl.c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("detector health %s", resp.Status)
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDetectionFailed, err)
	}
	return nil
}
