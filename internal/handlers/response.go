package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"storefront/internal/services"
)

// envelope is the shape of every API response.
type envelope struct {
	Success   bool     `json:"success"`
	Data      any      `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
	Available *int     `json:"available,omitempty"`
	Details   []string `json:"details,omitempty"`
}

type pageMeta struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
}

type listPayload struct {
	Items      any       `json:"items"`
	Pagination *pageMeta `json:"pagination,omitempty"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Error: "internal server error", Code: "internal"})
	}
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, envelope{Error: message, Code: codeForStatus(status)})
}

// respondServiceError maps an error kind onto a status code. Anything
// unclassified is logged in full and reported as a generic 500.
func respondServiceError(c *gin.Context, route string, err error) {
	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		available := stockErr.Available
		log.Printf("[%s] returning error %d: %v", route, http.StatusConflict, err)
		c.AbortWithStatusJSON(http.StatusConflict, envelope{
			Error:     fmt.Sprintf("only %d left in stock", available),
			Code:      "insufficient_stock",
			Available: &available,
		})
		return
	}

	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondWithError(c, http.StatusBadRequest, route, validationErr.Message)
	case errors.Is(err, services.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		respondWithError(c, http.StatusUnauthorized, route, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondWithError(c, http.StatusForbidden, route, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		log.Printf("[%s] returning error %d: %v", route, http.StatusConflict, err)
		c.AbortWithStatusJSON(http.StatusConflict, envelope{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, services.ErrConflict):
		respondWithError(c, http.StatusConflict, route, err.Error())
	default:
		log.Printf("[%s] [ERROR] %v", route, err)
		respondWithError(c, http.StatusInternalServerError, route, "internal server error")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// bindJSON decodes the body and answers 400 with field details on failure.
func bindJSON(c *gin.Context, route string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondValidationError(c, route, err)
		return false
	}
	return true
}

func respondValidationError(c *gin.Context, route string, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		log.Printf("[%s] returning error %d: %v", route, http.StatusBadRequest, details)
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Error:   "validation failed",
			Code:    "validation_error",
			Details: details,
		})
		return
	}
	respondWithError(c, http.StatusBadRequest, route, "invalid body")
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
