// Package solver implements the captcha-solving service client.
package solver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// Config controls the 2Captcha client.
type Config struct {
	APIKey       string
	SubmitURL    string
	ResultURL    string
	SoftTimeout  time.Duration
	PollInterval time.Duration
	HTTPTimeout  time.Duration
}

// TwoCaptcha submits image captchas to 2captcha.com and polls for the
// answer. Solve blocks up to the soft timeout; callers treat ErrNoAnswer as
// one consumed attempt, not a hard failure.
type TwoCaptcha struct {
	cfg    Config
	hc     *http.Client
	logger *zap.Logger
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// New builds a TwoCaptcha client.
func New(cfg Config, logger *zap.Logger) (*TwoCaptcha, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("solver: api key is required")
	}
	if cfg.SubmitURL == "" {
		cfg.SubmitURL = "https://2captcha.com/in.php"
	}
	if cfg.ResultURL == "" {
		cfg.ResultURL = "https://2captcha.com/res.php"
	}
	if cfg.SoftTimeout <= 0 {
		cfg.SoftTimeout = 120 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwoCaptcha{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
	}, nil
}

// Solve uploads the image and polls until an answer arrives or the soft
// timeout lapses.
func (s *TwoCaptcha) Solve(ctx context.Context, image []byte) (string, error) {
	id, err := s.submit(ctx, image)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(s.cfg.SoftTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
		answer, ready, err := s.poll(ctx, id)
		if err != nil {
			s.logger.Warn("solver poll failed", zap.Error(err))
			continue
		}
		if ready {
			return answer, nil
		}
	}
	return "", registration.ErrNoAnswer
}

func (s *TwoCaptcha) submit(ctx context.Context, image []byte) (string, error) {
	form := url.Values{
		"key":    {s.cfg.APIKey},
		"method": {"base64"},
		"body":   {base64.StdEncoding.EncodeToString(image)},
		"json":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SubmitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var parsed apiResponse
	if err := s.do(req, &parsed); err != nil {
		return "", fmt.Errorf("solver submit: %w", err)
	}
	if parsed.Status != 1 || parsed.Request == "" {
		return "", fmt.Errorf("solver submit rejected: %q", parsed.Request)
	}
	return parsed.Request, nil
}

func (s *TwoCaptcha) poll(ctx context.Context, id string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ResultURL, nil)
	if err != nil {
		return "", false, err
	}
	q := req.URL.Query()
	q.Set("key", s.cfg.APIKey)
	q.Set("action", "get")
	q.Set("id", id)
	q.Set("json", "1")
	req.URL.RawQuery = q.Encode()
	var parsed apiResponse
	if err := s.do(req, &parsed); err != nil {
		return "", false, err
	}
	if parsed.Status == 1 && parsed.Request != "" {
		return strings.TrimSpace(parsed.Request), true, nil
	}
	return "", false, nil
}

func (s *TwoCaptcha) do(req *http.Request, out *apiResponse) error {
	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
