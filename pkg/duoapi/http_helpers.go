package duoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// fetchAll walks a paginated list endpoint until Duo stops returning a
// next_offset.
func fetchAll[T any](ctx context.Context, c *Client, path string, limit int) ([]T, error) {
	var (
		all    []T
		offset = 0
	)

	for {
		params := url.Values{}
		if limit > 0 {
			params.Set("limit", strconv.Itoa(limit))
		}
		params.Set("offset", strconv.Itoa(offset))

		env, err := c.do(ctx, http.MethodGet, path, params)
		if err != nil {
			return nil, err
		}

		var page []T
		if err := json.Unmarshal(env.Response, &page); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
		}
		all = append(all, page...)

		if env.Metadata == nil || env.Metadata.NextOffset == nil {
			return all, nil
		}
		if *env.Metadata.NextOffset <= offset {
			return nil, fmt.Errorf("%w: next_offset %d does not advance past %d",
				ErrMalformedResponse, *env.Metadata.NextOffset, offset)
		}
		offset = *env.Metadata.NextOffset
	}
}

// do signs and sends a request and decodes the Duo envelope. Non-OK
// envelopes come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) (*envelope, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := canonParams(params)
	target := c.BaseURL + path
	if query != "" {
		target += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	date := c.now().UTC().Format(time.RFC1123Z)
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", sign(
		c.Credentials.IntegrationKey,
		c.Credentials.SecretKey,
		date,
		method,
		c.Credentials.Host,
		path,
		params,
	))
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return decodeEnvelope(resp)
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return nil, fmt.Errorf("%w: http %d: %v", ErrMalformedResponse, resp.StatusCode, err)
	}

	switch env.Stat {
	case "OK":
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: stat OK with http %d", ErrMalformedResponse, resp.StatusCode)
		}
		return &env, nil
	case "FAIL":
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
			Detail:     env.MessageDetail,
		}
	default:
		return nil, fmt.Errorf("%w: unexpected stat %q (http %d)", ErrMalformedResponse, env.Stat, resp.StatusCode)
	}
}
