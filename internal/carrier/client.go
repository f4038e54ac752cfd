package carrier

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxResponseSize = 1 << 20

// Config configures the EliteSpeed client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RatePerSecond limits outbound calls; zero disables limiting.
	RatePerSecond float64
	Burst         int
	// Transport is the base round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Created is a successful parcel creation.
type Created struct {
	TrackingCode string
	Payload      []byte
}

// Tracking is the current carrier state of a parcel.
type Tracking struct {
	TrackingCode string
	Status       string
	Payload      []byte
}

// Client calls the EliteSpeed HTTP API.
type Client struct {
	base    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Client. Outbound requests are traced through
// otelhttp.
func NewClient(cfg Config, opts ...otelhttp.Option) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey: cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base, opts...),
		},
		limiter: limiter,
	}
}

// CreateParcel registers a parcel with the carrier. Any failure, including
// transport errors, is a *ShippingError.
func (c *Client) CreateParcel(ctx context.Context, p Parcel) (*Created, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/parcels", encodeParcel(p))
	if err != nil {
		return nil, &ShippingError{Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &ShippingError{StatusCode: status, Payload: body}
	}
	s, err := parseShape(body)
	if err != nil || rejected(s) {
		return nil, &ShippingError{StatusCode: status, Payload: body}
	}
	code := s.tracking()
	if code == "" {
		return nil, &ShippingError{StatusCode: status, Payload: body}
	}
	return &Created{TrackingCode: code, Payload: body}, nil
}

// TrackParcel fetches the current status of a parcel.
func (c *Client) TrackParcel(ctx context.Context, trackingCode string) (*Tracking, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/parcels/"+url.PathEscape(trackingCode)+"/track", nil)
	if err != nil {
		return nil, errors.Wrap(err, "track parcel")
	}
	if status < 200 || status > 299 {
		return nil, errors.Errorf("track parcel: unexpected status %d: %s", status, truncate(string(body), 256))
	}
	s, err := parseShape(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode tracking")
	}
	t := &Tracking{TrackingCode: s.tracking(), Status: strings.TrimSpace(s.status()), Payload: body}
	if t.TrackingCode == "" {
		t.TrackingCode = trackingCode
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, errors.Wrap(err, "rate limit")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read response")
	}
	return resp.StatusCode, data, nil
}

// rejected detects application-level failures reported with a 2xx code.
func rejected(s *shape) bool {
	if v, ok := s.top["success"]; ok && v == "false" {
		return true
	}
	switch strings.ToLower(s.top["status"]) {
	case "error", "failed", "fail":
		return true
	}
	return false
}

func encodeParcel(p Parcel) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("reference")
	e.Str(p.Reference)
	e.FieldStart("receiver")
	e.Str(p.Recipient)
	e.FieldStart("phone")
	e.Str(NormalizePhone(p.Phone))
	e.FieldStart("city")
	e.Str(p.City)
	e.FieldStart("address")
	e.Str(p.Address)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.StringFixed(2)))
	e.FieldStart("product")
	e.Str(Describe(p.Lines))
	e.FieldStart("qty")
	e.Int(p.Quantity())
	if p.Note != "" {
		e.FieldStart("note")
		e.Str(p.Note)
	}
	e.ObjEnd()

	return bytes.Clone(e.Bytes())
}
