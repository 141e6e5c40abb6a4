package handlers

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	pkgerrors "treeview-ai/pkg/errors"
	"treeview-ai/pkg/utils"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorBody describes what went wrong.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := pkgerrors.HTTPStatus(err)
	requestID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		logger.Debug("request rejected",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	respondJSON(w, logger, status, ErrorResponse{
		Error:     ErrorBody{Type: string(pkgerrors.TypeOf(err)), Message: pkgerrors.Message(err)},
		RequestID: requestID,
	})
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewMalformed("invalid request body", err)
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return pkgerrors.NewValidation(err.Error())
	}
	return nil
}
