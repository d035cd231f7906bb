package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
)

// RateLimitInfo is the rate limit state reported with an API error.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     int64
}

// APIError is a failed GitHub API call.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
	RateLimit  *RateLimitInfo
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("GitHub API error (status %d)", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Errors) > 0 {
		msg += " (" + strings.Join(e.Errors, "; ") + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRateLimitError reports whether err is a rate limit rejection.
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return apiErr.StatusCode == http.StatusForbidden && apiErr.RateLimit != nil && apiErr.RateLimit.Remaining == 0
}

// IsNotFoundError reports whether err is a 404.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthenticationError reports whether the token was rejected or lacks permission.
func IsAuthenticationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	return apiErr.StatusCode == http.StatusForbidden && !IsRateLimitError(err)
}

// wrapError converts go-github errors into *APIError. Other errors
// (transport failures, cancellation) are returned unchanged.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		apiErr := &APIError{
			StatusCode: http.StatusForbidden,
			Message:    rateErr.Message,
			RateLimit: &RateLimitInfo{
				Limit:     rateErr.Rate.Limit,
				Remaining: rateErr.Rate.Remaining,
				Reset:     rateErr.Rate.Reset.Unix(),
			},
			Err: err,
		}
		if rateErr.Response != nil {
			apiErr.StatusCode = rateErr.Response.StatusCode
		}
		return apiErr
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		apiErr := &APIError{
			Message: respErr.Message,
			Err:     err,
		}
		if respErr.Response != nil {
			apiErr.StatusCode = respErr.Response.StatusCode
		}
		for _, e := range respErr.Errors {
			apiErr.Errors = append(apiErr.Errors, formatFieldError(e))
		}
		return apiErr
	}

	return err
}

func formatFieldError(e github.Error) string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Resource, e.Field, e.Code} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
