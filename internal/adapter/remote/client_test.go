package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "index-secret"

func testRecord() *domain.RemoteRecord {
	issuedAt := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	return &domain.RemoteRecord{
		View: domain.PublicView{
			ReferenceNumber: "QRT-2025-000001",
			Kind:            domain.ArtifactKindQRTID,
			Status:          domain.ArtifactStatusIssued,
			HolderName:      "Juan Dela Cruz",
			IssuedAt:        &issuedAt,
		},
		SignatureDigest: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		PublishedAt:     issuedAt,
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", testSecret, service.NewHMACSignatureService(), srv.Client())
}

func TestClient_Lookup(t *testing.T) {
	rec := testRecord()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/records/QRT-2025-000001", r.URL.Path)
		assert.Empty(t, r.Header.Get(HeaderSignature), "reads are unsigned")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": rec, "request_id": "r1"})
	})

	got, err := c.Lookup(context.Background(), "QRT-2025-000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.SignatureDigest, got.SignatureDigest)
	assert.Equal(t, "Juan Dela Cruz", got.View.HolderName)
	assert.True(t, rec.PublishedAt.Equal(got.PublishedAt))
}

func TestClient_Lookup_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"RES_001","message":"record not found"}`))
	})

	got, err := c.Lookup(context.Background(), "QRT-2025-000404")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_Lookup_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"SYS_001","message":"boom"}`))
	})

	_, err := c.Lookup(context.Background(), "QRT-2025-000001")
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "SYS_001", se.Code)
}

func TestClient_Lookup_ContextTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Lookup(ctx, "QRT-2025-000001")
	assert.Error(t, err)
}

func TestClient_Publish_Signed(t *testing.T) {
	sig := service.NewHMACSignatureService()
	rec := testRecord()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
		require.NoError(t, err)
		canonical := sig.BuildCanonicalString(r.Method, r.URL.Path, ts, r.Header.Get(HeaderNonce), string(body))
		assert.True(t, sig.Verify(testSecret, canonical, r.Header.Get(HeaderSignature)))

		var got domain.RemoteRecord
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, rec.View.ReferenceNumber, got.View.ReferenceNumber)
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.Publish(context.Background(), rec))
}

func TestClient_Publish_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"SEC_002","message":"Invalid signature"}`))
	})

	err := c.Publish(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEC_002")
}

func TestClient_Revoke(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get(HeaderSignature))
		switch r.URL.Path {
		case "/api/v1/records/QRT-2025-000001/revoke":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ok, err := c.Revoke(context.Background(), "QRT-2025-000001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Revoke(context.Background(), "QRT-2025-000404")
	require.NoError(t, err)
	assert.False(t, ok)
}
