package waitingroom

import (
	"encoding/json"
	"errors"
	"net/http"

	"flashsale-gateway/waitingroom/domain"

	"go.uber.org/zap"
)

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

const internalErrorMessage = "Something went wrong. Please try again shortly."

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func writeFail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, ErrorCode: code})
}

// writeError traduz erros de domínio para status HTTP. Qualquer outro erro é
// falha interna: vai para o log e o cliente recebe uma mensagem genérica.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeFail(w, status, domain.Code(err), internalErrorMessage)
		return
	}
	writeFail(w, status, domain.Code(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrQueueExpired),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotAdmittedYet),
		errors.Is(err, domain.ErrAlreadyConsumed),
		errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
