// Package httpx writes the JSON envelope every endpoint answers with:
// {"success": bool, "message"?: string, "data"?: any}.
package httpx

import (
	"net/http"

	"github.com/go-chi/render"
)

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, payload Envelope) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// OK answers 200 with data.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, Envelope{Success: true, Data: data})
}

// Message answers with a success message and optional data.
func Message(w http.ResponseWriter, r *http.Request, status int, msg string, data any) {
	JSON(w, r, status, Envelope{Success: true, Message: msg, Data: data})
}

// Error answers with success=false and a message.
func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, Envelope{Success: false, Message: msg})
}

// Invalid answers 400 with the per-field error list.
func Invalid(w http.ResponseWriter, r *http.Request, errs any) {
	JSON(w, r, http.StatusBadRequest, Envelope{Success: false, Message: "invalid input", Errors: errs})
}
