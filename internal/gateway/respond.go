package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	errx "github.com/atendimento-virtual/server/internal/core/error"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError renders err as {"error", "details"} using the AppError status.
// Anything that is not an AppError becomes a 500 without internal detail.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, errorResponse{Error: appErr.Message, Details: appErr.Details})
		return
	}
	logx.Error().Err(err).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errx.SystemErrorMessage})
}
