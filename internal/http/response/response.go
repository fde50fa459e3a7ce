// Package response writes the JSON envelope every endpoint returns. The
// message is localized with the request locale; responseCode mirrors the HTTP
// status.
package response

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/whitecard/whitecard-backend/internal/i18n"
)

// TokenHeader carries the issued token on responses that grant access.
const TokenHeader = "auth-token"

type Envelope struct {
	Success         bool       `json:"success"`
	ResponseCode    int        `json:"responseCode"`
	ResponseMessage string     `json:"responseMessage"`
	Data            any        `json:"data,omitempty"`
	Error           *ErrorBody `json:"error,omitempty"`
	RequestID       string     `json:"requestId,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Message is a translatable message ID with optional template data.
type Message struct {
	ID   string
	Data map[string]any
}

func Msg(id string) Message { return Message{ID: id} }

func JSON(w http.ResponseWriter, r *http.Request, status int, msg Message, data any) {
	write(w, status, Envelope{
		Success:         status < http.StatusBadRequest,
		ResponseCode:    status,
		ResponseMessage: i18n.Translate(r.Context(), msg.ID, msg.Data),
		Data:            data,
	})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code string, msg Message, details any) {
	write(w, status, Envelope{
		Success:         false,
		ResponseCode:    status,
		ResponseMessage: i18n.Translate(r.Context(), msg.ID, msg.Data),
		Error:           &ErrorBody{Code: code, Details: details},
		RequestID:       chimiddleware.GetReqID(r.Context()),
	})
}

// ErrorWithData is Error plus a data payload, for failures the client still
// routes on (scan responses carry sign=false).
func ErrorWithData(w http.ResponseWriter, r *http.Request, status int, code string, msg Message, data any) {
	write(w, status, Envelope{
		Success:         false,
		ResponseCode:    status,
		ResponseMessage: i18n.Translate(r.Context(), msg.ID, msg.Data),
		Data:            data,
		Error:           &ErrorBody{Code: code},
		RequestID:       chimiddleware.GetReqID(r.Context()),
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
