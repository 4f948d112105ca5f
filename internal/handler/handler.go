package handler

import (
	"net/http"
	"strconv"

	"shopcore/internal/middleware"
	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ActorHeader names the acting user for audit fields.
const ActorHeader = "X-Actor-ID"

var kindStatus = map[model.ErrorKind]int{
	model.KindNotFound:             http.StatusNotFound,
	model.KindInsufficientStock:    http.StatusConflict,
	model.KindUnavailable:          http.StatusConflict,
	model.KindInvalidPromotion:     http.StatusUnprocessableEntity,
	model.KindBelowMinimumPurchase: http.StatusUnprocessableEntity,
	model.KindUnauthorized:         http.StatusForbidden,
	model.KindInvalidTransition:    http.StatusConflict,
	model.KindEmptyCart:            http.StatusUnprocessableEntity,
	model.KindValidation:           http.StatusBadRequest,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind model.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FailureResponse lists the rejected items of a bulk request.
type FailureResponse struct {
	Index     int    `json:"index"`
	ProductID int64  `json:"productId"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// BatchErrorResponse is the body returned for a rolled back batch.
type BatchErrorResponse struct {
	model.ErrorResponse
	Failures []FailureResponse `json:"failures"`
}

// writeError translates err into a status and body. Domain errors keep their
// message; anything else is reported as an internal error without details.
func writeError(c *gin.Context, err error, logger zerolog.Logger) {
	_ = c.Error(err)
	correlationID := middleware.GetCorrelationID(c)

	var batch *model.BatchError
	if errors.As(err, &batch) && len(batch.Failures) > 0 {
		resp := BatchErrorResponse{
			ErrorResponse: model.ErrorResponse{
				Error:         codeFor(batch.Failures[0].Err),
				Message:       "batch rejected, nothing applied",
				CorrelationID: correlationID,
			},
			Failures: make([]FailureResponse, len(batch.Failures)),
		}
		for i, f := range batch.Failures {
			resp.Failures[i] = FailureResponse{
				Index:     f.Index,
				ProductID: f.ProductID,
				Error:     codeFor(f.Err),
				Message:   f.Err.Error(),
			}
		}
		c.AbortWithStatusJSON(StatusFor(model.KindOf(batch.Failures[0].Err)), resp)
		return
	}

	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		c.AbortWithStatusJSON(StatusFor(domainErr.Kind), model.ErrorResponse{
			Error:         domainErr.Code,
			Message:       domainErr.Message,
			CorrelationID: correlationID,
		})
		return
	}

	logger.Error().
		Err(err).
		Str("path", c.Request.URL.Path).
		Str("correlation_id", correlationID).
		Msg("handler error")
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
		Error:         model.ErrCodeInternalError,
		Message:       "internal server error",
		CorrelationID: correlationID,
	})
}

func codeFor(err error) string {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return model.ErrCodeInternalError
}

// writeBadRequest rejects a malformed request before it reaches a service.
func writeBadRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// actorID reads the optional acting user id from the request header.
func actorID(c *gin.Context) (*int64, error) {
	raw := c.GetHeader(ActorHeader)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, model.Errorf(model.KindValidation, "%s must be a positive integer", ActorHeader)
	}
	return &id, nil
}

// int64Param parses a positive integer path parameter.
func int64Param(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Errorf(model.KindValidation, "%s must be a positive integer", name)
	}
	return id, nil
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, model.Errorf(model.KindValidation, "%s must be a valid UUID", name)
	}
	return id, nil
}

// pagination reads the limit and offset query parameters. An absent limit
// selects model.DefaultPageSize.
func pagination(c *gin.Context) (model.Page, error) {
	var (
		limit, offset int
		err           error
	)
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return model.Page{}, model.Errorf(model.KindValidation, "invalid limit parameter")
		}
		if limit == 0 {
			return model.Page{}, model.Errorf(model.KindValidation, "limit must be positive")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return model.Page{}, model.Errorf(model.KindValidation, "invalid offset parameter")
		}
	}
	return model.NewPage(limit, offset)
}
