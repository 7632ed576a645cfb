// Package remote implements core.Store over the HTTP API.
package remote

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

	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
)

// TokenFunc returns the bearer token of the current user.
type TokenFunc func(ctx context.Context) (string, error)

type Client struct {
	baseURL string
	token   TokenFunc
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, token TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the JSON body of API errors: a message, or a map of field messages for validation errors.
type errorBody struct {
	Error json.RawMessage `json:"error"`
	Code  string          `json:"code"`
}

func decodeError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	var msg string
	var fields map[string]string
	if err := json.Unmarshal(eb.Error, &msg); err != nil {
		_ = json.Unmarshal(eb.Error, &fields)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest && eb.Code == core.KindConflict.String():
		return core.NewConflictError(msg)
	case status == http.StatusBadRequest:
		flds := make([]core.FieldError, 0, len(fields))
		for f, e := range fields {
			flds = append(flds, core.FieldError{Field: f, Error: e})
		}
		if len(flds) > 0 {
			return core.NewValidationError(nil, flds...)
		}
		return core.NewValidationError(errors.New(msg))
	case status == http.StatusUnauthorized:
		return core.ErrUnauthenticated
	case status == http.StatusForbidden:
		return core.ErrAccessDenied
	case status == http.StatusNotFound:
		return core.NewNotFoundError(msg)
	case status >= http.StatusInternalServerError:
		return core.NewTransientError(errors.Errorf("server error: %d %s", status, msg))
	default:
		return errors.Errorf("unexpected response: %d %s", status, msg)
	}
}

// do sends a JSON request and decodes the JSON response into out (when not nil).
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return core.NewTransientError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return core.NewTransientError(err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decoding response")
}

// Store is the core.Store of one resource of the API.
type Store[T any, N any, P any] struct {
	c      *Client
	kind   string
	parent string
}

// NewStore returns the store of kind, nested under parent (eg. "students") when not empty.
func NewStore[T any, N any, P any](c *Client, kind, parent string) *Store[T, N, P] {
	return &Store[T, N, P]{c: c, kind: kind, parent: parent}
}

// path is /v1/organizations/{org}[/{parent}/{parentID}]/{kind}[/{id}].
func (s *Store[T, N, P]) path(scope core.Scope, id string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/v1/organizations/%s", url.PathEscape(scope.OrganizationID))
	if s.parent != "" {
		fmt.Fprintf(&b, "/%s/%s", s.parent, url.PathEscape(scope.ParentID))
	}
	b.WriteString("/" + s.kind)
	if id != "" {
		b.WriteString("/" + url.PathEscape(id))
	}
	return b.String()
}

func (s *Store[T, N, P]) Create(ctx context.Context, scope core.Scope, payload N) (T, error) {
	var rec T
	err := s.c.do(ctx, http.MethodPost, s.path(scope, ""), payload, &rec)
	return rec, err
}

func (s *Store[T, N, P]) GetMany(ctx context.Context, scope core.Scope) ([]T, error) {
	recs := make([]T, 0)
	if err := s.c.do(ctx, http.MethodGet, s.path(scope, ""), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store[T, N, P]) GetOne(ctx context.Context, id string, scope core.Scope) (T, error) {
	var rec T
	err := s.c.do(ctx, http.MethodGet, s.path(scope, id), nil, &rec)
	return rec, err
}

func (s *Store[T, N, P]) Update(ctx context.Context, id string, scope core.Scope, patch P) (T, error) {
	var rec T
	err := s.c.do(ctx, http.MethodPatch, s.path(scope, id), patch, &rec)
	return rec, err
}

func (s *Store[T, N, P]) Delete(ctx context.Context, id string, scope core.Scope) error {
	return s.c.do(ctx, http.MethodDelete, s.path(scope, id), nil, nil)
}
