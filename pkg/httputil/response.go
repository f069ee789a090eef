package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-relay/pkg/errs"
)

type envelope map[string]any

// JSON writes v as the response body. A nil v writes headers only.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// Error writes {"error": {"message": msg}}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{
		"error": envelope{"message": msg},
	})
}

// FromErr maps err to a status via errs.ToHTTP and writes it.
func FromErr(w http.ResponseWriter, err error) {
	Error(w, errs.ToHTTP(err), err.Error())
}
