// Package apierr turns domain errors into HTTP responses. Internal error text
// is logged and never returned to the client.
package apierr

import (
	"errors"
	"net/http"
	"strconv"

	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/domain/payments"
	"sprynt-api/internal/infra/generation"
	"sprynt-api/internal/infra/ratelimit"
	"sprynt-api/internal/infra/storage"
	"sprynt-api/internal/infra/token"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError is a request the client has to fix.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(msg string) error { return &ValidationError{Message: msg} }

// ExternalError wraps a failed call to a payment or generation provider.
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string { return e.Service + ": " + e.Err.Error() }
func (e *ExternalError) Unwrap() error { return e.Err }

func External(service string, err error) error {
	return &ExternalError{Service: service, Err: err}
}

// Status classifies err and returns the response status and client message.
func Status(err error) (int, string) {
	var (
		insufficient *credits.InsufficientCreditsError
		limited      *ratelimit.LimitedError
		invalid      *ValidationError
		external     *ExternalError
	)

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, token.ErrMalformedToken):
		return http.StatusUnauthorized, "Malformed token"
	case errors.Is(err, token.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, token.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"

	case errors.As(err, &insufficient):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.As(err, &limited):
		return http.StatusTooManyRequests, "Rate limit exceeded"

	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Message
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, payments.ErrMalformedEvent):
		return http.StatusBadRequest, "Malformed event"
	case errors.Is(err, marketplace.ErrInvalidRating),
		errors.Is(err, marketplace.ErrInvalidListing),
		errors.Is(err, marketplace.ErrOwnListing),
		errors.Is(err, marketplace.ErrInvalidFeeRate):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, marketplace.ErrPlanRequired),
		errors.Is(err, marketplace.ErrNotPurchased):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, credits.ErrAccountNotFound),
		errors.Is(err, accounts.ErrNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, marketplace.ErrListingNotFound),
		errors.Is(err, marketplace.ErrProjectNotFound),
		errors.Is(err, marketplace.ErrSellerNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, marketplace.ErrAlreadyRated):
		return http.StatusConflict, err.Error()

	case errors.As(err, &external), errors.Is(err, generation.ErrProvider):
		return http.StatusBadGateway, "Upstream service failed"
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Downloads are not available"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// Respond writes the JSON error body for err and aborts the chain.
func Respond(c *gin.Context, log *logrus.Entry, err error) {
	status, msg := Status(err)
	body := gin.H{"message": msg}

	var insufficient *credits.InsufficientCreditsError
	var limited *ratelimit.LimitedError
	switch {
	case errors.As(err, &insufficient):
		body["required"] = insufficient.Required
		body["available"] = insufficient.Available
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(limited.RetryAfterSeconds()))
	}

	if status >= http.StatusInternalServerError && log != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
			"status": status,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}
