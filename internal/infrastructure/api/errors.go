package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	Messages []string `json:"messages,omitempty"`
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindState:
		if errors.Is(err, domain.ErrAlreadyConnected) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case domain.KindRateLimit:
		return http.StatusTooManyRequests
	case domain.KindPixelRejected:
		return http.StatusUnprocessableEntity
	case domain.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	body := errorResponse{
		Error: err.Error(),
		Kind:  string(domain.KindOf(err)),
	}

	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
	}
	var pixelErr *domain.PixelCreationRejectedError
	if errors.As(err, &pixelErr) {
		body.Messages = pixelErr.Messages
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
		body.Error = "internal server error"
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
