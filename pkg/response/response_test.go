package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"civic-document-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(CtxRequestID, requestID)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccessEnvelopes(t *testing.T) {
	c, w := testContext("req-ok")
	OK(c, map[string]string{"reference_number": "QRT-2025-000001"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-ok", resp.RequestID)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, "QRT-2025-000001", resp.Data.(map[string]interface{})["reference_number"])

	c, w = testContext("")
	Created(c, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
}

func TestSuccessEnvelope_EscapesMarkupOnRender(t *testing.T) {
	c, w := testContext("req-html")
	OK(c, map[string]string{"holder_name": "<b>Dela Cruz & Sons</b>"})

	assert.Contains(t, w.Body.String(), `\u003cb\u003eDela Cruz \u0026 Sons`)
	assert.NotContains(t, w.Body.String(), "<b>")

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "<b>Dela Cruz & Sons</b>", resp.Data.(map[string]interface{})["holder_name"])
}

func TestPaged(t *testing.T) {
	tests := []struct {
		total, pageSize, want int
	}{
		{41, 20, 3},
		{40, 20, 2},
		{0, 20, 0},
		{5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.pageSize), func(t *testing.T) {
			c, w := testContext("")
			Paged(c, []string{}, int64(tt.total), 1, tt.pageSize)

			var resp struct {
				Data Page `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, int64(tt.total), resp.Data.Total)
			assert.Equal(t, tt.want, resp.Data.TotalPages)
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"app error", apperror.ErrPaymentNotConfirmed(), http.StatusPaymentRequired, "TRN_002", "Payment has not been confirmed"},
		{"wrapped", fmt.Errorf("finalize: %w", apperror.ErrInvalidState("ISSUED", "READY")), http.StatusConflict, "TRN_001", "Cannot transition from ISSUED to READY"},
		{"plain", fmt.Errorf("pq: connection refused"), http.StatusInternalServerError, "SYS_000", "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext("req-err")
			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, "req-err", resp.RequestID)
		})
	}
}

func TestBindError(t *testing.T) {
	c, w := testContext("")
	BindError(c, fmt.Errorf("Key: 'kind' Error:Field validation for 'kind' failed on the 'required' tag"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).ErrorCode)

	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(strings.NewReader(strings.Repeat("A", 64))), 8)
	_, err := io.ReadAll(body)
	require.Error(t, err)

	c, w = testContext("")
	BindError(c, fmt.Errorf("decoding: %w", err))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apperror.CodePayloadTooLarge, decodeError(t, w).ErrorCode)
}
