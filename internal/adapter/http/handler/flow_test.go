package handler_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	httpHandler "civic-document-service/internal/adapter/http/handler"
	"civic-document-service/internal/adapter/http/middleware"
	"civic-document-service/internal/adapter/metrics"
	"civic-document-service/internal/adapter/remote"
	fileStorage "civic-document-service/internal/adapter/storage/file"
	redisStorage "civic-document-service/internal/adapter/storage/redis"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	flowIndexSecret    = "index-shared-secret"
	flowProviderSecret = "provider-shared-secret"
	flowStaffPassword  = "barangay-clerk-pass"
)

// memIndex is an in-memory authoritative index that keeps the first record per reference.
type memIndex struct {
	mu      sync.Mutex
	records map[string]domain.RemoteRecord
}

func newMemIndex() *memIndex {
	return &memIndex{records: make(map[string]domain.RemoteRecord)}
}

func (i *memIndex) Lookup(_ context.Context, ref string) (*domain.RemoteRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.records[ref]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (i *memIndex) Publish(_ context.Context, rec *domain.RemoteRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.records[rec.View.ReferenceNumber]; !ok {
		i.records[rec.View.ReferenceNumber] = *rec
	}
	return nil
}

func (i *memIndex) Revoke(_ context.Context, ref string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.records[ref]
	if !ok {
		return false, nil
	}
	rec.Revoked = true
	i.records[ref] = rec
	return true, nil
}

type portal struct {
	server   *httptest.Server
	index    *memIndex
	registry *prometheus.Registry
}

// newPortal wires the real services behind two routers: one instance that
// owns the index and one that issues documents and talks to it over HTTP.
func newPortal(t *testing.T) *portal {
	t.Helper()
	log := zerolog.Nop()
	sigSvc := service.NewHMACSignatureService()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	nonces := redisStorage.NewNonceStore(rdb)

	// Authoritative instance: serves the index only.
	index := newMemIndex()
	authority := httptest.NewServer(httpHandler.SetupRouter(httpHandler.RouterDeps{
		SigSvc:      sigSvc,
		NonceStore:  nonces,
		Index:       index,
		IndexSecret: flowIndexSecret,
		Logger:      log,
	}))
	t.Cleanup(authority.Close)

	// Issuing instance.
	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)
	kv, err := fileStorage.NewKVStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	opts := service.RecordStoreOptions{Debounce: time.Millisecond}

	ctx := context.Background()
	directory, err := service.NewDirectoryService(ctx,
		service.NewRecordStore[domain.Resident](kv, domain.CollectionResidents, opts, collector, log),
		service.NewRecordStore[domain.Announcement](kv, domain.CollectionAnnouncements, opts, collector, log),
		log,
	)
	require.NoError(t, err)

	counterStore := service.NewRecordStore[domain.SequenceCounter](kv, domain.CollectionCounters, opts, collector, log)
	allocator, err := service.NewSequenceAllocator(map[domain.ArtifactKind]string{
		domain.ArtifactKindQRTID:       "QRT",
		domain.ArtifactKindCertificate: "CERT",
		domain.ArtifactKindBlotter:     "BLT",
	}, false, nil, counterStore, nil, log)
	require.NoError(t, err)

	indexClient := remote.NewClient(authority.URL, flowIndexSecret, sigSvc, authority.Client())
	digestSvc := service.NewSHA256DigestService()

	lifecycle, err := service.NewLifecycleManager(ctx, service.LifecycleDeps{
		Allocator: allocator,
		Digest:    digestSvc,
		Residents: directory,
		Index:     indexClient,
		Metrics:   collector,
		Artifacts: service.NewArtifactStores(kv, opts, collector, log),
		Payments:  service.NewRecordStore[domain.PaymentTransaction](kv, domain.CollectionPayments, opts, collector, log),
		Log:       log,
	})
	require.NoError(t, err)

	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	clerkHash, err := hashSvc.Hash(flowStaffPassword)
	require.NoError(t, err)
	tokenSvc := service.NewJWTTokenService("flow-test-jwt-secret-0123456789", time.Hour, "flow-test")
	staffAuth, err := service.NewStaffAuthService(map[string]string{"clerk": clerkHash}, hashSvc, tokenSvc)
	require.NoError(t, err)

	gateway := service.NewVerificationGateway(indexClient, lifecycle, digestSvc,
		redisStorage.NewVerificationLog(rdb), collector, 2*time.Second, log)

	issuer := httptest.NewServer(httpHandler.SetupRouter(httpHandler.RouterDeps{
		Lifecycle:      lifecycle,
		Verification:   gateway,
		Directory:      directory,
		StaffAuth:      staffAuth,
		ReportingSvc:   service.NewReportingService(lifecycle),
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		NonceStore:     nonces,
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		ProviderSecret: flowProviderSecret,
		Metrics:        collector,
		Gatherer:       registry,
		Logger:         log,
	}))
	t.Cleanup(issuer.Close)

	return &portal{server: issuer, index: index, registry: registry}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (p *portal) call(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, p.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (p *portal) providerCallback(t *testing.T, payload map[string]interface{}) int {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	sig := service.NewHMACSignatureService()
	path := "/api/v1/payments/callback"
	ts := time.Now().Unix()
	nonce := uuid.NewString()

	req, err := http.NewRequest(http.MethodPost, p.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	req.Header.Set(middleware.HeaderProviderSignature,
		sig.Sign(flowProviderSecret, sig.BuildCanonicalString(http.MethodPost, path, ts, nonce, string(body))))

	resp, err := p.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func (p *portal) verify(t *testing.T, ref, digest string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := p.server.Client().Get(p.server.URL + "/verify/" + ref + "?digest=" + digest)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestFlow_CertificateIssuanceAndVerification(t *testing.T) {
	p := newPortal(t)

	// Resident registers.
	code, env := p.call(t, http.MethodPost, "/api/v1/residents", "", map[string]string{
		"full_name":  "Maria Santos",
		"address":    "Purok 5, Barangay San Isidro",
		"birth_date": "1988-02-14",
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	var resident domain.Resident
	require.NoError(t, json.Unmarshal(env.Data, &resident))

	// Certificate request goes straight to AWAITING_PAYMENT.
	code, env = p.call(t, http.MethodPost, "/api/v1/artifacts", "", map[string]interface{}{
		"kind":     "CERTIFICATE",
		"owner_id": resident.ID.String(),
		"details":  map[string]string{"purpose": "Employment"},
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	var artifact domain.Artifact
	require.NoError(t, json.Unmarshal(env.Data, &artifact))
	assert.Equal(t, domain.ArtifactStatusAwaitingPayment, artifact.Status)
	assert.Regexp(t, `^CERT-\d{4}-000001$`, artifact.ReferenceNumber)

	// Staff login.
	code, env = p.call(t, http.MethodPost, "/api/v1/staff/login", "", map[string]string{
		"username": "clerk",
		"password": flowStaffPassword,
	}, nil)
	require.Equal(t, http.StatusOK, code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	token := login.Token

	// Finalizing before payment is refused.
	signature := []byte("captain-signature-png-bytes")
	encoded := base64.StdEncoding.EncodeToString(signature)
	code, env = p.call(t, http.MethodPost, "/api/v1/staff/artifacts/"+artifact.ID.String()+"/finalize", token,
		map[string]string{"signature": encoded}, nil)
	assert.Equal(t, http.StatusPaymentRequired, code)

	// Payment initiated and settled by the provider.
	code, env = p.call(t, http.MethodPost, "/api/v1/artifacts/"+artifact.ID.String()+"/payments", "",
		map[string]interface{}{"method": "wallet-b", "amount": 7500}, nil)
	require.Equal(t, http.StatusCreated, code)
	var payment domain.PaymentTransaction
	require.NoError(t, json.Unmarshal(env.Data, &payment))

	callback := map[string]interface{}{
		"transaction_reference": payment.TransactionReference,
		"status":                "success",
		"amount":                7500,
		"method":                "wallet-b",
	}
	require.Equal(t, http.StatusOK, p.providerCallback(t, callback))
	// Redelivery is a no-op.
	require.Equal(t, http.StatusOK, p.providerCallback(t, callback))

	code, env = p.call(t, http.MethodGet, "/api/v1/artifacts/"+artifact.ID.String(), "", nil, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &artifact))
	assert.Equal(t, domain.ArtifactStatusReady, artifact.Status)

	// Issue and publish to the authoritative index.
	code, env = p.call(t, http.MethodPost, "/api/v1/staff/artifacts/"+artifact.ID.String()+"/finalize", token,
		map[string]string{"signature": encoded}, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &artifact))
	assert.Equal(t, domain.ArtifactStatusIssued, artifact.Status)

	sum := sha256.Sum256(signature)
	digest := hex.EncodeToString(sum[:])
	assert.Equal(t, digest, artifact.SignatureDigest)

	rec, err := p.index.Lookup(context.Background(), artifact.ReferenceNumber)
	require.NoError(t, err)
	require.NotNil(t, rec, "finalize publishes to the index")
	assert.Equal(t, "Maria Santos", rec.View.HolderName)

	// Public verification.
	code, out := p.verify(t, artifact.ReferenceNumber, digest)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, string(domain.VerdictMatchConfirmedRemote), out["reason"])

	code, out = p.verify(t, artifact.ReferenceNumber, hex.EncodeToString(make([]byte, 32)))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, string(domain.VerdictDigestMismatch), out["reason"])

	code, _ = p.verify(t, "CERT-2025-999999", digest)
	assert.Equal(t, http.StatusNotFound, code)

	// Issued artifacts are immutable.
	code, env = p.call(t, http.MethodPost, "/api/v1/staff/artifacts/"+artifact.ID.String()+"/reject", token,
		map[string]string{"reason": "changed my mind"}, nil)
	assert.Equal(t, http.StatusConflict, code)

	// Revocation travels to the index and flips the verdict.
	code, _ = p.call(t, http.MethodPost, "/api/v1/staff/documents/"+artifact.ReferenceNumber+"/revoke", token, nil, nil)
	require.Equal(t, http.StatusOK, code)

	code, out = p.verify(t, artifact.ReferenceNumber, digest)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["valid"])
	assert.Equal(t, string(domain.VerdictRevoked), out["reason"])

	// Every attempt is in the verification history, newest first.
	code, env = p.call(t, http.MethodGet, "/api/v1/staff/verifications/"+artifact.ReferenceNumber, token, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var history []domain.VerificationLogEntry
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, domain.VerdictRevoked, history[0].Reason)
	assert.Equal(t, domain.VerdictMatchConfirmedRemote, history[2].Reason)
}

func TestFlow_BlotterSkipsPayment(t *testing.T) {
	p := newPortal(t)

	_, env := p.call(t, http.MethodPost, "/api/v1/residents", "", map[string]string{
		"full_name":  "Jose Rizal",
		"address":    "Purok 1",
		"birth_date": "1990-06-19",
	}, nil)
	var resident domain.Resident
	require.NoError(t, json.Unmarshal(env.Data, &resident))

	code, env := p.call(t, http.MethodPost, "/api/v1/artifacts", "", map[string]interface{}{
		"kind":     "BLOTTER",
		"owner_id": resident.ID.String(),
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	var artifact domain.Artifact
	require.NoError(t, json.Unmarshal(env.Data, &artifact))
	assert.Equal(t, domain.ArtifactStatusProcessing, artifact.Status)

	code, _ = p.call(t, http.MethodPost, "/api/v1/artifacts/"+artifact.ID.String()+"/payments", "",
		map[string]interface{}{"method": "wallet-a", "amount": 100}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestFlow_UnsignedCallbackRejected(t *testing.T) {
	p := newPortal(t)

	code, env := p.call(t, http.MethodPost, "/api/v1/payments/callback", "", map[string]interface{}{
		"transaction_reference": "PAY-forged",
		"status":                "success",
		"amount":                100,
		"method":                "wallet-a",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "SEC_002", env.ErrorCode)
}

func TestFlow_RequestsAreCounted(t *testing.T) {
	p := newPortal(t)

	code, _ := p.call(t, http.MethodGet, "/api/v1/announcements", "", nil, nil)
	require.Equal(t, http.StatusOK, code)

	resp, err := p.server.Client().Get(p.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `route="/api/v1/announcements"`)
}
