// Package handler implements the REST endpoint handlers for the engagement
// engine.
package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	dbTypes "github.com/bumpring/bumpring/internal/database/types"
	"github.com/bumpring/bumpring/internal/engage"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/ratelimit"
	restTypes "github.com/bumpring/bumpring/internal/rest/types"
	"github.com/uptrace/bunrouter"
)

// userIDHeader carries the authenticated user identity, set by the wider
// application's auth proxy in front of this service.
const userIDHeader = "X-User-ID"

// userID extracts the authenticated user from the request, or writes a 401.
func userID(w http.ResponseWriter, req bunrouter.Request) (string, bool) {
	id := req.Header.Get(userIDHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}

	return id, true
}

// writeError writes the uniform JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	bunrouter.JSON(w, restTypes.ErrorResponse{Error: msg}) //nolint:errcheck
}

// handleServiceError maps engine errors onto HTTP statuses. Rate limit
// rejections carry a Retry-After header so well-behaved clients back off.
func handleServiceError(w http.ResponseWriter, err error) {
	var rateErr *ratelimit.Error
	if errors.As(err, &rateErr) {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.WriteHeader(http.StatusTooManyRequests)
		bunrouter.JSON(w, restTypes.ErrorResponse{ //nolint:errcheck
			Error:      err.Error(),
			RetryAfter: seconds,
		})

		return
	}

	switch {
	case errors.Is(err, dbTypes.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engage.ErrNotAllowed), errors.Is(err, thread.ErrNotAuthor):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, reaction.ErrInvalidType),
		errors.Is(err, reaction.ErrInvalidIntensity),
		errors.Is(err, thread.ErrThreadTooDeep),
		errors.Is(err, thread.ErrEmptyBody),
		errors.Is(err, thread.ErrBodyTooLong),
		errors.Is(err, thread.ErrParentMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// queryInt parses a positive integer query parameter with a default.
func queryInt(req bunrouter.Request, name string, def int) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}

	return value
}
