package telegram

import (
	"bytes"
	"context"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

// Photos larger than this are not downloaded.
const maxPhotoBytes = 20 << 20

// Client talks to the Telegram Bot API and implements the Messenger port.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// call issues one Bot API request and decodes result into out (nil discards it).
func (c *Client) call(ctx context.Context, httpMethod, method string, query url.Values, body any, out any) error {
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues("telegram", method).Observe(time.Since(start).Seconds())
	}()

	target := c.methodURL(method)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: marshal request: %w", method, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, target, reader)
	if err != nil {
		return fmt.Errorf("telegram %s: create request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The token is part of the URL; never let it reach the logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var env apiResponse
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Description != "" {
			return fmt.Errorf("telegram %s: http %d: %s", method, resp.StatusCode, env.Description)
		}
		return fmt.Errorf("telegram %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, decodeErr)
	}
	if !env.OK {
		return fmt.Errorf("telegram %s: ok=false: %s", method, env.Description)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// getUpdates long-polls for updates after offset and returns the offset to
// use on the next call.
func (c *Client) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	q := url.Values{}
	q.Set("timeout", fmt.Sprint(secs))
	q.Set("allowed_updates", `["message"]`)
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+5*time.Second)
	defer cancel()

	var updates []update
	if err := c.call(reqCtx, http.MethodGet, "getUpdates", q, nil, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// downloadPhoto resolves fileID and returns the file contents.
func (c *Client) downloadPhoto(ctx context.Context, fileID string) (_ []byte, err error) {
	defer obs.Time(ctx, "telegram.DownloadPhoto")(&err)

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, errors.New("telegram download: missing file_id")
	}

	var f file
	if err := c.call(ctx, http.MethodGet, "getFile", url.Values{"file_id": {fileID}}, nil, &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.FilePath) == "" {
		return nil, errors.New("telegram getFile: missing file_path")
	}
	if f.FileSize > maxPhotoBytes {
		return nil, fmt.Errorf("telegram download: file too large (%d bytes)", f.FileSize)
	}

	target := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(f.FilePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram download: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("telegram download: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: read body: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("telegram download: file too large (>%d bytes)", maxPhotoBytes)
	}
	return data, nil
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, http.MethodPost, "sendMessage", nil, sendMessageRequest{ChatID: chatID, Text: text}, nil)
}

func (c *Client) SendLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	return c.call(ctx, http.MethodPost, "sendLocation", nil, sendLocationRequest{
		ChatID:    chatID,
		Latitude:  lat,
		Longitude: lng,
	}, nil)
}
