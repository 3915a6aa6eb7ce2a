// Package gateway implements the HTTP+HTML facade over the target
// registration form.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hvnguyen/popmart-registrar/internal/ratelimit"
	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// Element and action names that make up the site contract.
const (
	daySelectID       = "slNgayBanHang"
	actionLoadSession = "LoadPhien"
	actionLoadCaptcha = "LoadCaptcha"
	paramDayID        = "idNgayBanHang"
	sessionSeparator  = "||@@||"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Safari/537.36"

// Config controls the gateway client.
type Config struct {
	BaseURL   string
	FormPath  string
	AjaxPath  string
	UserAgent string
	Timeout   time.Duration

	MaxRetries   int
	BackoffBase  time.Duration
	BackoffLimit time.Duration

	// MaxRPS caps outbound request rate against the site; <= 0 is unlimited.
	MaxRPS float64
	Burst  int
}

// Client is a registration.Gateway over a single shared HTTP session. The
// cookie jar is shared deliberately: the captcha challenge is bound
// server-side to the session that fetched it, so every call for a batch must
// ride the same cookies. http.Client and cookiejar.Jar are both safe for
// concurrent use by the day workers.
type Client struct {
	cfg     Config
	hc      *http.Client
	policy  retryPolicy
	limiter *ratelimit.Limiter
}

// New builds a Client with a fresh cookie jar.
func New(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway: base url is required")
	}
	if cfg.FormPath == "" {
		cfg.FormPath = "/popmart"
	}
	if cfg.AjaxPath == "" {
		cfg.AjaxPath = "/Ajax.aspx"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: cookie jar: %w", err)
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout, Jar: jar},
		policy:  newRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffLimit),
		limiter: ratelimit.New(ratelimit.Config{MaxRPS: cfg.MaxRPS, Burst: cfg.Burst}),
	}, nil
}

// FetchFormPage retrieves the main form page.
func (c *Client) FetchFormPage(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.FormPath, nil)
	if err != nil {
		return "", fmt.Errorf("fetch form page: %w", err)
	}
	return string(body), nil
}

// SalesDayLabels returns the day labels listed on the form, in document
// order. Options missing either a label or a value are placeholders and
// are skipped.
func (c *Client) SalesDayLabels(html string) []string {
	var out []string
	forEachDayOption(html, func(label, value string) bool {
		if label != "" && value != "" {
			out = append(out, label)
		}
		return true
	})
	return out
}

// MapLabelToID resolves a day label to the option value the form expects.
func (c *Client) MapLabelToID(html, label string) (string, bool) {
	var id string
	var found bool
	forEachDayOption(html, func(text, value string) bool {
		if text == label && value != "" {
			id, found = value, true
			return false
		}
		return true
	})
	return id, found
}

// LoadSessions lists the sessions open under a day id. The endpoint returns
// option markup followed by auxiliary segments joined with "||@@||"; only
// the first segment carries sessions.
func (c *Client) LoadSessions(ctx context.Context, dayID string) ([]registration.Session, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.AjaxPath, url.Values{
		"Action":   {actionLoadSession},
		paramDayID: {dayID},
	})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	raw := strings.TrimSpace(string(body))
	optionsHTML := strings.Split(raw, sessionSeparator)[0]
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(optionsHTML))
	if err != nil {
		return nil, fmt.Errorf("load sessions: parse options: %w", err)
	}
	var sessions []registration.Session
	doc.Find("option").Each(func(_ int, sel *goquery.Selection) {
		value := strings.TrimSpace(sel.AttrOr("value", ""))
		label := strings.TrimSpace(sel.Text())
		if value == "" {
			return
		}
		sessions = append(sessions, registration.Session{ID: value, Label: label})
	})
	return sessions, nil
}

// FetchCaptcha requests a fresh challenge and returns the absolute image
// URL. Challenges are single-use and expire; callers must fetch a new one
// per attempt.
func (c *Client) FetchCaptcha(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.AjaxPath, url.Values{
		"Action": {actionLoadCaptcha},
	})
	if err != nil {
		return "", fmt.Errorf("fetch captcha: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("fetch captcha: parse: %w", err)
	}
	src := strings.TrimSpace(doc.Find("img").First().AttrOr("src", ""))
	if src == "" {
		return "", fmt.Errorf("fetch captcha: no image in response")
	}
	if strings.HasPrefix(src, "http") {
		return src, nil
	}
	return c.cfg.BaseURL + "/" + strings.TrimLeft(src, "./"), nil
}

// DownloadImage fetches the challenge image bytes.
func (c *Client) DownloadImage(ctx context.Context, ref string) ([]byte, error) {
	body, err := c.get(ctx, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	return body, nil
}

// SubmitRegistration posts the payload and returns the trimmed response
// text for classification.
func (c *Client) SubmitRegistration(ctx context.Context, fields map[string]string) (string, error) {
	params := url.Values{}
	for k, v := range fields {
		params.Set(k, v)
	}
	body, err := c.get(ctx, c.cfg.BaseURL+c.cfg.AjaxPath, params)
	if err != nil {
		return "", fmt.Errorf("submit registration: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.policy.withRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		if params != nil {
			req.URL.RawQuery = params.Encode()
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, req.URL.Path)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func forEachDayOption(html string, fn func(label, value string) bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	doc.Find("select#" + daySelectID + " option").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		label := strings.TrimSpace(sel.Text())
		value := strings.TrimSpace(sel.AttrOr("value", ""))
		return fn(label, value)
	})
}
