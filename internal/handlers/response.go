package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/middleware"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// respondError translates a service error into its status and public message
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var rateErr *services.RateLimitError
	if errors.As(err, &rateErr) {
		retryAfter := int(math.Ceil(time.Until(rateErr.RetryAfter).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate_limit_exceeded",
			"message":     rateErr.Message,
			"retry_after": rateErr.RetryAfter,
			"type":        rateErr.Type,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"kind":  apperrors.KindOf(err),
			"error": err.Error(),
		}).Error("Request failed")
	}
	_ = c.Error(err)

	c.JSON(status, ErrorResponse{
		Error:   string(apperrors.KindOf(err)),
		Message: apperrors.PublicMessage(err),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   string(apperrors.KindValidation),
		Message: message,
	})
}

// respondList writes a page. When the query asked for a field projection only
// those keys and id are emitted, so unselected columns never show up as zero
// values.
func respondList[T any](c *gin.Context, logger *logrus.Logger, result *models.ListResult[T], q *database.ListQuery) {
	if q == nil || len(q.Fields) == 0 {
		c.JSON(http.StatusOK, result)
		return
	}

	rows, err := projectRows(result.Data, q.Fields)
	if err != nil {
		respondError(c, logger, apperrors.Internal(err, "failed to encode list"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": result.Meta})
}

func projectRows[T any](data []T, fields []string) ([]map[string]json.RawMessage, error) {
	keep := map[string]bool{"id": true}
	for _, name := range fields {
		keep[name] = true
	}

	rows := make([]map[string]json.RawMessage, 0, len(data))
	for i := range data {
		raw, err := json.Marshal(&data[i])
		if err != nil {
			return nil, err
		}
		var full map[string]json.RawMessage
		if err := json.Unmarshal(raw, &full); err != nil {
			return nil, err
		}
		row := make(map[string]json.RawMessage, len(keep))
		for key, value := range full {
			if keep[key] {
				row[key] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// queryParams flattens the query string into the map the list services take
func queryParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondBadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated caller or writes a 401
func currentUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return middleware.UserContext{}, false
	}
	return userCtx, true
}
