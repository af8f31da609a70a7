package proxy

import (
	"errors"
	"net/http"

	"github.com/pders01/podrelay/internal/validation"
)

var (
	ErrInvalidURL     = validation.ErrInvalidURL
	ErrHostNotAllowed = validation.ErrHostNotAllowed
	// ErrUpstreamFetch covers transport errors, timeouts, non-2xx responses
	// and oversized bodies from the origin.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrRateLimited is returned once a client exceeds its request window.
	ErrRateLimited = errors.New("rate limited")
)

// StatusCode maps a relay error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, ErrHostNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text sent to clients. Upstream details stay in the log.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "Invalid URL"
	case errors.Is(err, ErrHostNotAllowed):
		return "Host not allowed"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests from this IP, please try again later."
	default:
		return "Failed to fetch RSS feed"
	}
}
