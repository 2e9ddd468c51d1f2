package response

import (
	"encoding/json"
	"net/http"

	domainerr "github.com/cloudcommerce/user-service/domain/error"
)

type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
	Details string      `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope)
}

func Success(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Envelope{Status: false, Message: message})
}

// FromError renders err with the status its code maps to. Details of
// internal errors are only exposed when devMode is set.
func FromError(w http.ResponseWriter, err error, devMode bool) {
	appErr := domainerr.AsAppError(err)
	statusCode := domainerr.GetHTTPStatusCode(appErr)

	envelope := Envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Details,
	}
	if statusCode == http.StatusInternalServerError && !devMode {
		envelope.Details = ""
	}
	WriteJSON(w, statusCode, envelope)
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, message)
}

func InternalServerError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}
