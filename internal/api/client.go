package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable is returned when no daemon API is configured or reachable.
var ErrUnavailable = errors.New("daemon API unavailable")

// StatusError carries a non-2xx response from the daemon.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon API returned status %d", e.Code)
	}
	return fmt.Sprintf("daemon API returned status %d: %s", e.Code, e.Message)
}

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind ("host:port" or a URL). An empty bind
// yields a nil client.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Mappings lists up to limit mappings, newest first. limit <= 0 lists all.
func (c *Client) Mappings(ctx context.Context, limit int) (MappingListResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out MappingListResponse
	err := c.do(ctx, http.MethodGet, "/api/mappings", values, nil, &out)
	return out, err
}

// Mapping fetches a single mapping.
func (c *Client) Mapping(ctx context.Context, sourceFileID string) (Mapping, error) {
	var out MappingResponse
	err := c.do(ctx, http.MethodGet, mappingPath(sourceFileID), nil, nil, &out)
	return out.Mapping, err
}

// PutMapping creates or replaces a mapping.
func (c *Client) PutMapping(ctx context.Context, sourceFileID, documentID string) (Mapping, error) {
	var out MappingResponse
	err := c.do(ctx, http.MethodPut, mappingPath(sourceFileID), nil, PutMappingRequest{DocumentID: documentID}, &out)
	return out.Mapping, err
}

// DeleteMapping removes a mapping and reports whether it existed.
func (c *Client) DeleteMapping(ctx context.Context, sourceFileID string) (bool, error) {
	var out DeleteMappingResponse
	err := c.do(ctx, http.MethodDelete, mappingPath(sourceFileID), nil, nil, &out)
	return out.Deleted, err
}

func mappingPath(id string) string {
	return "/api/mappings/" + url.PathEscape(strings.TrimSpace(id))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
