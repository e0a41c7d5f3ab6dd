// Package remote talks to an authoritative document index served by another
// instance of this service over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/google/uuid"
)

// Header names used to sign index writes.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

// RecordsPath is the route prefix of the index API.
const RecordsPath = "/api/v1/records"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.DocumentIndex against a remote index.
type Client struct {
	baseURL    string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	clock      func() time.Time
}

// NewClient creates an index client for baseURL. Writes are HMAC-signed with secret.
func NewClient(baseURL, secret string, sigSvc ports.SignatureService, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		clock:      time.Now,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("index responded %d: %s: %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("index responded %d", e.Status)
}

// Lookup returns nil, nil when the index answers 404.
func (c *Client) Lookup(ctx context.Context, reference string) (*domain.RemoteRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, recordPath(reference), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(resp)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding index record: %w", err)
	}
	var rec domain.RemoteRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding index record: %w", err)
	}
	return &rec, nil
}

// Publish sends an issued record to the index.
func (c *Client) Publish(ctx context.Context, rec *domain.RemoteRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, recordPath(rec.View.ReferenceNumber), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	return nil
}

// Revoke marks a record revoked. Returns false when the index does not know the reference.
func (c *Client) Revoke(ctx context.Context, reference string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, recordPath(reference)+"/revoke", []byte("{}"))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building index request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		c.sign(req, path, body)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) sign(req *http.Request, path string, body []byte) {
	ts := c.clock().Unix()
	nonce := uuid.New().String()
	canonical := c.sigSvc.BuildCanonicalString(req.Method, path, ts, nonce, string(body))

	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, c.sigSvc.Sign(c.secret, canonical))
}

func recordPath(reference string) string {
	return RecordsPath + "/" + url.PathEscape(reference)
}

func statusError(resp *http.Response) error {
	se := &StatusError{Status: resp.StatusCode}
	var env errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err == nil {
		se.Code = env.ErrorCode
		se.Msg = env.Message
	}
	return se
}
