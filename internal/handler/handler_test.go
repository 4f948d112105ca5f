package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopcore/internal/middleware"
	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve routes a single request through a one-route engine.
func serve(method, pattern string, h gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Handle(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func int64Ptr(v int64) *int64 { return &v }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind     model.ErrorKind
		expected int
	}{
		{model.KindNotFound, http.StatusNotFound},
		{model.KindInsufficientStock, http.StatusConflict},
		{model.KindUnavailable, http.StatusConflict},
		{model.KindInvalidPromotion, http.StatusUnprocessableEntity},
		{model.KindBelowMinimumPurchase, http.StatusUnprocessableEntity},
		{model.KindUnauthorized, http.StatusForbidden},
		{model.KindInvalidTransition, http.StatusConflict},
		{model.KindEmptyCart, http.StatusUnprocessableEntity},
		{model.KindValidation, http.StatusBadRequest},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.kind))
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "domain error keeps its message",
			err:            model.Errorf(model.KindInsufficientStock, "insufficient stock for product 1"),
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInsufficientStock,
			expectedMsg:    "insufficient stock for product 1",
		},
		{
			name:           "wrapped domain error",
			err:            errors.Wrap(model.Errorf(model.KindNotFound, "order x not found"), "lookup"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeNotFound,
			expectedMsg:    "order x not found",
		},
		{
			name:           "internal error hides details",
			err:            errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(middleware.CorrelationHeader, "corr-1")
			w := serve(http.MethodGet, "/x", func(c *gin.Context) {
				writeError(c, tt.err, zerolog.Nop())
			}, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.expectedCode, resp.Error)
			assert.Equal(t, tt.expectedMsg, resp.Message)
			assert.Equal(t, "corr-1", resp.CorrelationID)
		})
	}
}

func TestWriteError_BatchError(t *testing.T) {
	batch := &model.BatchError{Failures: []model.ItemFailure{
		{Index: 1, ProductID: 7, Err: model.Errorf(model.KindInsufficientStock, "insufficient stock for product 7")},
		{Index: 2, ProductID: 9, Err: model.Errorf(model.KindNotFound, "product 9 not found")},
	}}

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	w := serve(http.MethodPost, "/x", func(c *gin.Context) {
		writeError(c, batch, zerolog.Nop())
	}, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp BatchErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.ErrCodeInsufficientStock, resp.Error)
	require.Len(t, resp.Failures, 2)
	assert.Equal(t, 2, resp.Failures[1].Index)
	assert.Equal(t, int64(9), resp.Failures[1].ProductID)
	assert.Equal(t, model.ErrCodeNotFound, resp.Failures[1].Error)
}

func TestActorID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected *int64
		wantErr  bool
	}{
		{name: "absent", header: ""},
		{name: "valid", header: "12", expected: int64Ptr(12)},
		{name: "not a number", header: "admin", wantErr: true},
		{name: "zero", header: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set(ActorHeader, tt.header)
			}

			actor, err := actorID(c)
			if tt.wantErr {
				assert.Equal(t, model.KindValidation, model.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actor)
		})
	}
}
