package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func okResponse(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}
}

func sampleArtifact() *domain.Artifact {
	return &domain.Artifact{
		ID:              uuid.New(),
		Kind:            domain.ArtifactKindQRTID,
		ReferenceNumber: "QRT-2025-000001",
		Status:          domain.ArtifactStatusPaymentConfirmed,
		OwnerID:         uuid.New(),
	}
}

func TestStatusNotifier_Delivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	sigSvc.EXPECT().Sign("notify-secret", gomock.Any()).Return("signature-hash")

	bodies := make(chan []byte, 1)
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, EventStatusChanged, req.Header.Get("X-Event-Type"))
			b, _ := io.ReadAll(req.Body)
			bodies <- b
			return okResponse(http.StatusOK), nil
		},
	}

	n := NewStatusNotifier("https://portal.example.gov/hooks", "notify-secret", sigSvc, httpClient, newTestLogger())
	n.NotifyStatusChange(context.Background(), sampleArtifact(), domain.ArtifactStatusAwaitingPayment)

	select {
	case b := <-bodies:
		var event StatusEvent
		require.NoError(t, json.Unmarshal(b, &event))
		assert.Equal(t, "signature-hash", event.Signature)
		assert.Equal(t, "QRT-2025-000001", event.Data.ReferenceNumber)
		assert.Equal(t, "AWAITING_PAYMENT", event.Data.From)
		assert.Equal(t, "PAYMENT_CONFIRMED", event.Data.To)
	case <-time.After(2 * time.Second):
		t.Fatal("notification delivery timed out")
	}
}

func TestStatusNotifier_RetriesUntilSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	sigSvc.EXPECT().Sign(gomock.Any(), gomock.Any()).Return("sig")

	var calls atomic.Int32
	done := make(chan struct{})
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			switch calls.Add(1) {
			case 1:
				return nil, errors.New("connection refused")
			case 2:
				return okResponse(http.StatusBadGateway), nil
			default:
				close(done)
				return okResponse(http.StatusNoContent), nil
			}
		},
	}

	n := NewStatusNotifier("https://portal.example.gov/hooks", "s", sigSvc, httpClient, newTestLogger()).(*webhookNotifier)
	n.retryIntervals = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	n.NotifyStatusChange(context.Background(), sampleArtifact(), domain.ArtifactStatusAwaitingPayment)

	select {
	case <-done:
		assert.EqualValues(t, 3, calls.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not retried")
	}
}

func TestStatusNotifier_DisabledWithoutURL(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Fatal("should not be called")
			return nil, nil
		},
	}

	n := NewStatusNotifier("", "secret", NewHMACSignatureService(), httpClient, newTestLogger())
	n.NotifyStatusChange(context.Background(), sampleArtifact(), domain.ArtifactStatusAwaitingPayment)

	time.Sleep(50 * time.Millisecond)
}
