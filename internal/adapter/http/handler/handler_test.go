package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/adapter/http/middleware"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/internal/core/ports/mocks"
	"civic-document-service/internal/service"
	"civic-document-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testRef        = "CERT-2025-000042"
	staffToken     = "staff-token"
	providerSecret = "provider-secret"
	indexSecret    = "index-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	lifecycle *mocks.MockLifecycleService
	verify    *mocks.MockVerificationService
	directory *mocks.MockDirectoryService
	auth      *mocks.MockStaffAuthService
	reporting *mocks.MockReportingService
	tokens    *mocks.MockTokenService
	index     *mocks.MockDocumentIndex
	nonces    *mocks.MockNonceStore
	sig       *service.HMACSignatureService
	deps      RouterDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		lifecycle: mocks.NewMockLifecycleService(ctrl),
		verify:    mocks.NewMockVerificationService(ctrl),
		directory: mocks.NewMockDirectoryService(ctrl),
		auth:      mocks.NewMockStaffAuthService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		tokens:    mocks.NewMockTokenService(ctrl),
		index:     mocks.NewMockDocumentIndex(ctrl),
		nonces:    mocks.NewMockNonceStore(ctrl),
		sig:       service.NewHMACSignatureService(),
	}
	f.tokens.EXPECT().Validate(staffToken).Return(&ports.TokenClaims{Username: "clerk"}, nil).AnyTimes()
	f.tokens.EXPECT().Validate(gomock.Not(staffToken)).Return(nil, errors.New("bad token")).AnyTimes()
	f.deps = RouterDeps{
		Lifecycle:    f.lifecycle,
		Verification: f.verify,
		Directory:    f.directory,
		StaffAuth:    f.auth,
		ReportingSvc: f.reporting,
		SigSvc:       f.sig,
		TokenSvc:     f.tokens,
		NonceStore:   f.nonces,
		Logger:       zerolog.Nop(),
	}
	return f
}

func (f *fixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	SetupRouter(f.deps).ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func staffRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	req := jsonRequest(t, method, path, body)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	return req
}

func (f *fixture) signedRequest(t *testing.T, method, path, secret, header string, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	nonce := uuid.NewString()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	req.Header.Set(header, f.sig.Sign(secret, f.sig.BuildCanonicalString(method, path, ts, nonce, string(body))))
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func issuedView() *domain.PublicView {
	issuedAt := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	return &domain.PublicView{
		ReferenceNumber: testRef,
		Kind:            domain.ArtifactKindCertificate,
		Status:          domain.ArtifactStatusIssued,
		HolderName:      "Maria Santos",
		DocumentType:    "Barangay Clearance",
		IssuedAt:        &issuedAt,
	}
}

// --- Verification ---

func TestVerify_Match(t *testing.T) {
	f := newFixture(t)
	f.verify.EXPECT().Verify(gomock.Any(), testRef, "abc123", "192.0.2.1").Return(domain.Verdict{
		Valid:    true,
		Reason:   domain.VerdictMatchConfirmedRemote,
		Artifact: issuedView(),
	})

	w := f.serve(httptest.NewRequest(http.MethodGet, "/verify/"+testRef+"?digest=abc123", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, domain.VerdictMatchConfirmedRemote, resp.Reason)
	require.NotNil(t, resp.Certificate)
	assert.Equal(t, "Maria Santos", resp.Certificate.HolderName)
}

func TestVerify_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		reason domain.VerdictReason
		code   int
	}{
		{"not found", domain.VerdictNotFound, http.StatusNotFound},
		{"revoked", domain.VerdictRevoked, http.StatusOK},
		{"mismatch", domain.VerdictDigestMismatch, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.verify.EXPECT().Verify(gomock.Any(), testRef, "", gomock.Any()).Return(domain.Verdict{Reason: tt.reason})

			w := f.serve(httptest.NewRequest(http.MethodGet, "/verify/"+testRef, nil))

			assert.Equal(t, tt.code, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["valid"])
			assert.Equal(t, string(tt.reason), resp["reason"])
			assert.Equal(t, tt.reason.Message(), resp["message"])
			assert.NotContains(t, resp, "certificate")
		})
	}
}

func TestVerify_MalformedReference(t *testing.T) {
	f := newFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/verify/not-a-ref", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationHistory(t *testing.T) {
	f := newFixture(t)
	f.verify.EXPECT().History(gomock.Any(), testRef, 5).Return([]domain.VerificationLogEntry{
		{ReferenceNumber: testRef, Reason: domain.VerdictRevoked},
	}, nil)

	w := f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/verifications/"+testRef+"?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]interface{})
	assert.Len(t, data, 1)
}

// --- Resident-facing ---

func TestRequestArtifact_Success(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	f.lifecycle.EXPECT().Request(gomock.Any(), ports.ArtifactRequest{
		Kind:    domain.ArtifactKindCertificate,
		OwnerID: ownerID,
		Details: map[string]string{"purpose": "Employment"},
	}).Return(&domain.Artifact{
		ID:              uuid.New(),
		Kind:            domain.ArtifactKindCertificate,
		ReferenceNumber: testRef,
		Status:          domain.ArtifactStatusRequested,
		OwnerID:         ownerID,
	}, nil)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/artifacts", dto.ArtifactRequest{
		Kind:    "CERTIFICATE",
		OwnerID: ownerID.String(),
		Details: map[string]string{"purpose": "  Employment "},
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, testRef, data["reference_number"])
	assert.Equal(t, "REQUESTED", data["status"])
}

func TestRequestArtifact_ValidationError(t *testing.T) {
	f := newFixture(t)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/artifacts", dto.ArtifactRequest{
		Kind:    "PASSPORT",
		OwnerID: uuid.NewString(),
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decode(t, w)["error_code"])
}

func TestRequestArtifact_UnknownOwner(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotFound("resident"))

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/artifacts", dto.ArtifactRequest{
		Kind:    "QRT_ID",
		OwnerID: uuid.NewString(),
	}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetArtifact_InvalidID(t *testing.T) {
	f := newFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/123", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	artifactID := uuid.New()
	f.lifecycle.EXPECT().InitiatePayment(gomock.Any(), ports.PaymentInit{
		ArtifactID: artifactID,
		Method:     domain.PaymentMethodWalletA,
		Amount:     5000,
	}).Return(&domain.PaymentTransaction{
		ID:                   uuid.New(),
		ArtifactID:           artifactID,
		Amount:               5000,
		Method:               domain.PaymentMethodWalletA,
		Status:               domain.PaymentStatusPending,
		TransactionReference: "TXN-abc",
	}, nil)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/artifacts/"+artifactID.String()+"/payments",
		dto.PaymentInitRequest{Method: "wallet-a", Amount: 5000}))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "TXN-abc", data["transaction_reference"])
}

func TestInitiatePayment_NotPayable(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.EXPECT().InitiatePayment(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInvalidState("REQUESTED", "AWAITING_PAYMENT"))

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/artifacts/"+uuid.NewString()+"/payments",
		dto.PaymentInitRequest{Method: "bank-transfer", Amount: 100}))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterResident(t *testing.T) {
	f := newFixture(t)
	f.directory.EXPECT().RegisterResident(gomock.Any(), ports.ResidentRegistration{
		FullName:  "Juan Dela Cruz",
		Address:   "Purok 3",
		BirthDate: "1990-04-12",
	}).Return(&domain.Resident{ID: uuid.New(), FullName: "Juan Dela Cruz"}, nil)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/residents", dto.ResidentRequest{
		FullName:  "Juan Dela Cruz",
		Address:   "Purok 3",
		BirthDate: "1990-04-12",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegisterResident_BadBirthDate(t *testing.T) {
	f := newFixture(t)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/residents", dto.ResidentRequest{
		FullName:  "Juan Dela Cruz",
		Address:   "Purok 3",
		BirthDate: "12/04/1990",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAnnouncements(t *testing.T) {
	f := newFixture(t)
	f.directory.EXPECT().ListAnnouncements(gomock.Any()).Return(domain.SeedAnnouncements(), nil)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/announcements", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["data"])
}

// --- Payment callbacks ---

func callbackBody(t *testing.T) []byte {
	body, err := json.Marshal(dto.PaymentCallbackRequest{
		TransactionReference: "TXN-abc",
		Status:               "success",
		Amount:               5000,
		Method:               "wallet-a",
	})
	require.NoError(t, err)
	return body
}

func TestPaymentCallback_DisabledWithoutSecret(t *testing.T) {
	f := newFixture(t)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/payments/callback", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentCallback_Signed(t *testing.T) {
	f := newFixture(t)
	f.deps.ProviderSecret = providerSecret
	f.nonces.EXPECT().CheckAndSet(gomock.Any(), "provider", gomock.Any(), gomock.Any()).Return(true, nil)
	f.lifecycle.EXPECT().HandlePaymentCallback(gomock.Any(), domain.PaymentCallback{
		TransactionReference: "TXN-abc",
		Status:               domain.PaymentStatusSuccess,
		Amount:               5000,
		Method:               domain.PaymentMethodWalletA,
	}).Return(&domain.Artifact{Status: domain.ArtifactStatusPaymentConfirmed}, nil)

	req := f.signedRequest(t, http.MethodPost, "/api/v1/payments/callback", providerSecret,
		middleware.HeaderProviderSignature, callbackBody(t))
	w := f.serve(req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PAYMENT_CONFIRMED", data["status"])
}

func TestPaymentCallback_WrongSecret(t *testing.T) {
	f := newFixture(t)
	f.deps.ProviderSecret = providerSecret

	req := f.signedRequest(t, http.MethodPost, "/api/v1/payments/callback", "forged",
		middleware.HeaderProviderSignature, callbackBody(t))
	w := f.serve(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Staff ---

func TestStaffLogin(t *testing.T) {
	f := newFixture(t)
	expiry := time.Now().Add(time.Hour)
	f.auth.EXPECT().Login(gomock.Any(), "clerk", "s3cret-pass").Return("jwt-token", expiry, nil)

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/staff/login", dto.LoginRequest{
		Username: "clerk",
		Password: "s3cret-pass",
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestStaffLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), "clerk", "wrong").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/staff/login", dto.LoginRequest{
		Username: "clerk",
		Password: "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaffRoutes_RequireToken(t *testing.T) {
	f := newFixture(t)

	w := f.serve(jsonRequest(t, http.MethodGet, "/api/v1/staff/artifacts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := jsonRequest(t, http.MethodGet, "/api/v1/staff/artifacts", nil)
	req.Header.Set("Authorization", "Bearer forged")
	w = f.serve(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListArtifacts_Filters(t *testing.T) {
	f := newFixture(t)
	ownerID := uuid.New()
	kind := domain.ArtifactKindBlotter
	status := domain.ArtifactStatusProcessing
	f.lifecycle.EXPECT().List(gomock.Any(), ports.ArtifactListParams{
		Kind:     &kind,
		Status:   &status,
		OwnerID:  &ownerID,
		Page:     2,
		PageSize: 10,
	}).Return([]domain.Artifact{{Kind: kind, Status: status}}, int64(11), nil)

	w := f.serve(staffRequest(t, http.MethodGet,
		"/api/v1/staff/artifacts?kind=BLOTTER&status=PROCESSING&owner_id="+ownerID.String()+"&page=2&page_size=10", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
}

func TestListArtifacts_InvalidFilters(t *testing.T) {
	for _, q := range []string{"kind=PASSPORT", "status=REVOKED", "owner_id=nope"} {
		t.Run(q, func(t *testing.T) {
			f := newFixture(t)
			w := f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/artifacts?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListPayments(t *testing.T) {
	f := newFixture(t)
	artifactID := uuid.New()
	f.lifecycle.EXPECT().ListPayments(gomock.Any(), &artifactID).Return([]domain.PaymentTransaction{}, nil)

	w := f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/payments?artifact_id="+artifactID.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdvance(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.lifecycle.EXPECT().Advance(gomock.Any(), id, domain.ArtifactStatusProcessing).
		Return(&domain.Artifact{ID: id, Status: domain.ArtifactStatusProcessing}, nil)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/artifacts/"+id.String()+"/advance",
		dto.AdvanceRequest{Status: "PROCESSING"}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdvance_CannotSkipToIssued(t *testing.T) {
	f := newFixture(t)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/artifacts/"+uuid.NewString()+"/advance",
		dto.AdvanceRequest{Status: "ISSUED"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFinalize_PaymentGate(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.lifecycle.EXPECT().Finalize(gomock.Any(), id, "c2lnbmF0dXJl").Return(nil, apperror.ErrPaymentNotConfirmed())

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/artifacts/"+id.String()+"/finalize",
		dto.FinalizeRequest{Signature: "c2lnbmF0dXJl"}))

	assert.Equal(t, apperror.ErrPaymentNotConfirmed().HTTPStatus, w.Code)
	assert.Equal(t, apperror.CodePaymentNotConfirmed, decode(t, w)["error_code"])
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.lifecycle.EXPECT().Reject(gomock.Any(), id, "Incomplete requirements").
		Return(&domain.Artifact{ID: id, Status: domain.ArtifactStatusRejected}, nil)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/artifacts/"+id.String()+"/reject",
		dto.ReasonRequest{Reason: "Incomplete requirements"}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReissue(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.lifecycle.EXPECT().Reissue(gomock.Any(), id, "Lost").
		Return(&domain.Artifact{ID: uuid.New(), ReissuedFrom: &id, Status: domain.ArtifactStatusRequested}, nil)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/artifacts/"+id.String()+"/reissue",
		dto.ReasonRequest{Reason: "Lost"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, id.String(), data["reissued_from"])
}

func TestStaffRevoke(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.EXPECT().Revoke(gomock.Any(), testRef).Return(nil)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/documents/"+testRef+"/revoke", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["revoked"])
}

func TestPublishAnnouncement(t *testing.T) {
	f := newFixture(t)
	f.directory.EXPECT().PublishAnnouncement(gomock.Any(), "Clean-up drive", "Saturday 7 AM").
		Return(&domain.Announcement{Title: "Clean-up drive"}, nil)

	w := f.serve(staffRequest(t, http.MethodPost, "/api/v1/staff/announcements",
		dto.AnnouncementRequest{Title: "Clean-up drive", Body: "Saturday 7 AM"}))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	f.reporting.EXPECT().GetDashboardStats(gomock.Any(), "week").Return(&ports.DashboardStats{
		TotalArtifacts: 7,
		Issued:         3,
	}, nil)

	w := f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/dashboard/stats?period=week", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["total_artifacts"])

	f.reporting.EXPECT().GetDashboardStats(gomock.Any(), "all").Return(&ports.DashboardStats{}, nil)
	w = f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/dashboard/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardStats_InvalidPeriod(t *testing.T) {
	f := newFixture(t)

	w := f.serve(staffRequest(t, http.MethodGet, "/api/v1/staff/dashboard/stats?period=decade", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Authoritative index ---

func TestRecords_NotMountedWithoutIndex(t *testing.T) {
	f := newFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/records/"+testRef, nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecords_Get(t *testing.T) {
	f := newFixture(t)
	f.deps.Index = f.index
	rec := domain.RemoteRecord{View: *issuedView(), SignatureDigest: "ab"}
	f.index.EXPECT().Lookup(gomock.Any(), testRef).Return(&rec, nil)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/records/"+testRef, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data domain.RemoteRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Maria Santos", resp.Data.View.HolderName)
}

func TestRecords_GetUnknown(t *testing.T) {
	f := newFixture(t)
	f.deps.Index = f.index
	f.index.EXPECT().Lookup(gomock.Any(), testRef).Return(nil, nil)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/records/"+testRef, nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecords_WritesRequireIndexSecret(t *testing.T) {
	f := newFixture(t)
	f.deps.Index = f.index

	w := f.serve(jsonRequest(t, http.MethodPost, "/api/v1/records/"+testRef+"/revoke", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecords_Publish(t *testing.T) {
	digest := service.NewSHA256DigestService().Digest([]byte("signature"))
	rec := domain.RemoteRecord{View: *issuedView(), SignatureDigest: digest, Revoked: true}
	body, err := json.Marshal(rec)
	require.NoError(t, err)

	f := newFixture(t)
	f.deps.Index = f.index
	f.deps.IndexSecret = indexSecret
	f.nonces.EXPECT().CheckAndSet(gomock.Any(), "index", gomock.Any(), gomock.Any()).Return(true, nil)
	f.index.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, got *domain.RemoteRecord) error {
			assert.Equal(t, digest, got.SignatureDigest)
			assert.False(t, got.Revoked, "revocation only travels through the revoke route")
			return nil
		},
	)

	w := f.serve(f.signedRequest(t, http.MethodPut, "/api/v1/records/"+testRef, indexSecret, middleware.HeaderSignature, body))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecords_PublishRejectsBadPayload(t *testing.T) {
	digest := service.NewSHA256DigestService().Digest([]byte("signature"))
	other := *issuedView()
	other.ReferenceNumber = "CERT-2025-000043"
	pending := *issuedView()
	pending.Status = domain.ArtifactStatusReady

	tests := []struct {
		name string
		rec  domain.RemoteRecord
	}{
		{"path mismatch", domain.RemoteRecord{View: other, SignatureDigest: digest}},
		{"not issued", domain.RemoteRecord{View: pending, SignatureDigest: digest}},
		{"bad digest", domain.RemoteRecord{View: *issuedView(), SignatureDigest: "xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.rec)
			require.NoError(t, err)

			f := newFixture(t)
			f.deps.Index = f.index
			f.deps.IndexSecret = indexSecret
			f.nonces.EXPECT().CheckAndSet(gomock.Any(), "index", gomock.Any(), gomock.Any()).Return(true, nil)

			w := f.serve(f.signedRequest(t, http.MethodPut, "/api/v1/records/"+testRef, indexSecret, middleware.HeaderSignature, body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRecords_Revoke(t *testing.T) {
	tests := []struct {
		name    string
		revoked bool
		code    int
	}{
		{"known", true, http.StatusOK},
		{"unknown", false, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.deps.Index = f.index
			f.deps.IndexSecret = indexSecret
			f.nonces.EXPECT().CheckAndSet(gomock.Any(), "index", gomock.Any(), gomock.Any()).Return(true, nil)
			f.index.EXPECT().Revoke(gomock.Any(), testRef).Return(tt.revoked, nil)

			path := "/api/v1/records/" + testRef + "/revoke"
			w := f.serve(f.signedRequest(t, http.MethodPost, path, indexSecret, middleware.HeaderSignature, []byte("{}")))

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

// --- Infrastructure ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                 { return s.name }
func (s stubChecker) Ping(ctx context.Context) error { return s.err }

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	f.deps.HealthCheckers = []ports.HealthChecker{stubChecker{name: "postgres"}}

	w := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	f.deps.HealthCheckers = append(f.deps.HealthCheckers, stubChecker{name: "redis", err: errors.New("down")})
	w = f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	redis := body["dependencies"].(map[string]interface{})["redis"].(map[string]interface{})
	assert.Equal(t, false, redis["healthy"])
	assert.Equal(t, "down", redis["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "cds_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	f.deps.Gatherer = reg

	w := f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cds_test_total 1")
}

func TestSwagger(t *testing.T) {
	f := newFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.deps.OpenAPISpec = []byte("openapi: 3.0.3\n")
	w = f.serve(httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = f.serve(httptest.NewRequest(http.MethodGet, "/swagger", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}
