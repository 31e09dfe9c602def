// Package session owns the client side of the optimistic-concurrency
// protocol: it holds the document's version token, issues writes that
// carry it, and classifies the server's answer exactly once at the
// transport boundary.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SaveResult is what a successful write hands back: the new token the
// caller must adopt before any further write, plus the advisory audit
// timestamp.
type SaveResult struct {
	Version      int64     `json:"version"`
	ModifiedDate time.Time `json:"modified_date"`
}

type Session struct {
	client  *http.Client
	baseURL string
	token   string
	log     zerolog.Logger

	mu         sync.Mutex
	contractID uuid.UUID
	version    int64
	readOnly   bool
	conflicted bool
}

type Option func(*Session)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

func WithToken(token string) Option {
	return func(s *Session) { s.token = token }
}

// New opens an edit session for one contract at the version the caller
// last read.
func New(baseURL string, contractID uuid.UUID, version int64, log zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		client:     &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		contractID: contractID,
		version:    version,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version returns the token the session currently holds.
func (s *Session) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ReadOnly reports whether a 403 has downgraded this session.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// Conflicted reports whether a stale-version rejection has halted the
// session. Only Reload clears it.
func (s *Session) Conflicted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicted
}

// Submit writes the full mutable field set under the current version
// token. On success the session adopts the server's new version before
// returning. After a conflict, every further Submit fails immediately
// until Reload fetches a fresh token; retrying a stale write would
// silently discard another user's work.
func (s *Session) Submit(ctx context.Context, payload map[string]any) (*SaveResult, error) {
	s.mu.Lock()
	if s.conflicted {
		s.mu.Unlock()
		return nil, ErrConflict
	}
	if s.readOnly {
		s.mu.Unlock()
		return nil, ErrPermissionDenied
	}
	version := s.version
	contractID := s.contractID
	s.mu.Unlock()

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["version"] = version

	url := fmt.Sprintf("%s/contracts/%s", s.baseURL, contractID)
	resp, err := s.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result SaveResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &NetworkError{Status: resp.StatusCode, Err: err}
		}
		s.mu.Lock()
		s.version = result.Version
		s.mu.Unlock()
		return &result, nil

	case http.StatusConflict:
		s.mu.Lock()
		s.conflicted = true
		s.mu.Unlock()
		s.log.Warn().Str("contract_id", contractID.String()).Int64("version", version).
			Msg("stale version rejected, autosave halted until reload")
		return nil, ErrConflict

	case http.StatusForbidden:
		s.mu.Lock()
		s.readOnly = true
		s.mu.Unlock()
		return nil, ErrPermissionDenied

	case http.StatusUnprocessableEntity:
		return nil, decodeValidationError(resp.Body)

	default:
		return nil, &NetworkError{Status: resp.StatusCode}
	}
}

// CreateResult is the server's answer to a creation: the new id and the
// implicitly assigned version 1.
type CreateResult struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
}

// Create posts a brand-new contract. No version token is required; the
// server assigns version 1. On success the session binds itself to the
// new document.
func (s *Session) Create(ctx context.Context, payload map[string]any) (*CreateResult, error) {
	url := fmt.Sprintf("%s/contracts/", s.baseURL)
	resp, err := s.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result CreateResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &NetworkError{Status: resp.StatusCode, Err: err}
		}
		s.mu.Lock()
		s.contractID = result.ID
		s.version = result.Version
		s.mu.Unlock()
		return &result, nil

	case http.StatusForbidden:
		s.mu.Lock()
		s.readOnly = true
		s.mu.Unlock()
		return nil, ErrPermissionDenied

	case http.StatusUnprocessableEntity:
		return nil, decodeValidationError(resp.Body)

	default:
		return nil, &NetworkError{Status: resp.StatusCode}
	}
}

// Reload fetches the document's current version, clearing the conflict
// halt. The caller is expected to re-read the document body alongside.
func (s *Session) Reload(ctx context.Context) (int64, error) {
	url := fmt.Sprintf("%s/contracts/%s", s.baseURL, s.contractID)
	resp, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &NetworkError{Status: resp.StatusCode}
	}

	var doc struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return 0, &NetworkError{Status: resp.StatusCode, Err: err}
	}

	s.mu.Lock()
	s.version = doc.Version
	s.conflicted = false
	s.mu.Unlock()
	return doc.Version, nil
}

func (s *Session) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.client.Do(req)
}
