/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the editor API.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx answer. Message is the server's error text when it
// sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("server: %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Glyphs lists every glyph record with its shape count.
func (c *Client) Glyphs(ctx context.Context) ([]GlyphSummary, error) {
	var list []GlyphSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/glyphs", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Click sends a click at the absolute grid position (x, y).
func (c *Client) Click(ctx context.Context, code int, x, y float64) (ClickResponse, error) {
	var out ClickResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/glyphs/%d/click", code), ClickRequest{X: x, Y: y}, &out)
	return out, err
}

// Outline returns the merged outline path data of one glyph.
func (c *Client) Outline(ctx context.Context, code int) (string, error) {
	var out struct {
		Outline string `json:"outline"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/glyphs/%d/outline", code), nil, &out); err != nil {
		return "", err
	}
	return out.Outline, nil
}

// ResetGlyph removes all shapes of one glyph.
func (c *Client) ResetGlyph(ctx context.Context, code int) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/glyphs/%d/reset", code), nil, nil)
}

// Font downloads the OpenType font built from the current design.
func (c *Client) Font(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/font", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
