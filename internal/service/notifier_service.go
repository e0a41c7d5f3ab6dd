package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// notifyRetryIntervals is the wait before each redelivery attempt.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// EventStatusChanged is the event type of every status notification.
const EventStatusChanged = "ARTIFACT_STATUS_CHANGED"

// StatusEvent is the JSON structure posted to the portal's webhook URL.
type StatusEvent struct {
	EventType string          `json:"event_type"`
	Data      StatusEventData `json:"data"`
	Signature string          `json:"signature"`
}

// StatusEventData holds the artifact transition in the event.
type StatusEventData struct {
	ArtifactID      string `json:"artifact_id"`
	ReferenceNumber string `json:"reference_number"`
	Kind            string `json:"kind"`
	OwnerID         string `json:"owner_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	Reason          string `json:"reason,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookNotifier implements ports.StatusNotifier by posting signed events.
type webhookNotifier struct {
	url            string
	secret         string
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	log            zerolog.Logger
}

type nopNotifier struct{}

func (nopNotifier) NotifyStatusChange(context.Context, *domain.Artifact, domain.ArtifactStatus) {}

// NewStatusNotifier creates a notifier posting to url. An empty url disables notifications.
func NewStatusNotifier(
	url string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) ports.StatusNotifier {
	if url == "" {
		return nopNotifier{}
	}
	return &webhookNotifier{
		url:            url,
		secret:         secret,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		retryIntervals: notifyRetryIntervals,
		log:            log,
	}
}

// NotifyStatusChange delivers the event asynchronously with retries.
func (n *webhookNotifier) NotifyStatusChange(_ context.Context, a *domain.Artifact, from domain.ArtifactStatus) {
	data := StatusEventData{
		ArtifactID:      a.ID.String(),
		ReferenceNumber: a.ReferenceNumber,
		Kind:            string(a.Kind),
		OwnerID:         a.OwnerID.String(),
		From:            string(from),
		To:              string(a.Status),
		Reason:          a.StatusReason,
		Timestamp:       time.Now().Unix(),
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		n.log.Error().Err(err).Str("reference", a.ReferenceNumber).Msg("notify: failed to marshal event")
		return
	}

	event := StatusEvent{
		EventType: EventStatusChanged,
		Data:      data,
		Signature: n.sigSvc.Sign(n.secret, string(dataBytes)),
	}

	go n.deliverWithRetries(event)
}

func (n *webhookNotifier) deliverWithRetries(event StatusEvent) {
	ref := event.Data.ReferenceNumber
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Str("reference", ref).Msg("notify: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(n.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(n.retryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			n.log.Error().Err(err).Str("reference", ref).Msg("notify: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", event.EventType)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("reference", ref).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Debug().Str("reference", ref).Int("attempt", attempt+1).Msg("notify: delivered")
			return
		}

		n.log.Warn().Str("reference", ref).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notify: non-2xx response, retrying")
	}

	n.log.Error().Str("reference", ref).Msg("notify: all retry attempts exhausted")
}
