package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/logging"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxBodySize = 8 << 20
)

// HTTPClient talks to the device service over HTTP/JSON.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	log     logging.Logger
}

// NewHTTPClient returns a client for the service at baseURL. Each call is
// bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if log == nil {
		log = logging.Nop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{Transport: transport},
		log:     log.With("module", "remote"),
	}, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) List(ctx context.Context) ([]*models.Device, error) {
	body, err := c.do(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, mapError("list devices", err)
	}
	devices, skipped, err := models.DecodeSnapshot(body)
	if err != nil {
		return nil, mapError("list devices", err)
	}
	if skipped > 0 {
		c.log.Warn(ctx, "skipped malformed snapshot entries", "count", skipped)
	}
	return devices, nil
}

func (c *HTTPClient) Create(ctx context.Context, name, os, manufacturer string) (*models.Device, error) {
	form := url.Values{}
	form.Set("device", name)
	form.Set("os", os)
	form.Set("manufacturer", manufacturer)

	body, err := c.do(ctx, http.MethodPost, "/devices", form)
	if err != nil {
		return nil, mapError("create device", err)
	}

	var w models.WireDevice
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, nil
	}
	if d, ok := w.ToDevice(); ok {
		return d, nil
	}
	return nil, nil
}

func (c *HTTPClient) SetCheckedIn(ctx context.Context, id int64) error {
	form := url.Values{}
	form.Set("isCheckedOut", "false")
	_, err := c.do(ctx, http.MethodPost, devicePath(id), form)
	return mapError(fmt.Sprintf("check in device %d", id), err)
}

func (c *HTTPClient) SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) error {
	form := url.Values{}
	form.Set("lastCheckedOutDate", models.FormatWireTime(at))
	form.Set("lastCheckedOutBy", by)
	form.Set("isCheckedOut", "true")
	_, err := c.do(ctx, http.MethodPost, devicePath(id), form)
	return mapError(fmt.Sprintf("check out device %d", id), err)
}

func (c *HTTPClient) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, devicePath(id), nil)
	return mapError(fmt.Sprintf("delete device %d", id), err)
}

// Ping reports whether GET /devices answers with a 2xx status.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/devices", nil)
	return mapError("ping", err)
}

func devicePath(id int64) string {
	return "/devices/" + strconv.FormatInt(id, 10)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	c.log.Debug(ctx, "remote call", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d from %s %s", ErrBadStatus, resp.StatusCode, method, path)
	}
	return data, nil
}
