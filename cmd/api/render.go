package main

import (
	"errors"
	"net/http"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/middleware"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type errorBody struct {
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	Field        string `json:"field,omitempty"`
	Suggestion   string `json:"suggestion"`
	OrderID      *int64 `json:"order_id"`
}

func renderJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "JSON Encode Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// renderError maps classified errors onto their status and suggestion.
// Anything unclassified is logged and reported as a 500 without detail.
func renderError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := exceptions.KindOf(err)
	body := errorBody{
		ErrorType:  string(kind),
		Suggestion: exceptions.Suggestion(kind),
	}

	var e *exceptions.Error
	if kind == exceptions.Unknown || !errors.As(err, &e) {
		log.Error("request failed",
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body.ErrorMessage = "internal error"
	} else {
		body.ErrorMessage = e.Message
		body.Field = e.Field
	}
	renderJSON(w, exceptions.HTTPStatus(kind), body)
}
