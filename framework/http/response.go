package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/km-arc/go-spiral/framework/errs"
	"github.com/km-arc/go-spiral/framework/http/validation"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with JSON envelope helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// Unauthorized sends 401.
func (res *Response) Unauthorized(message ...string) {
	msg := first(message, "Unauthenticated.")
	res.JSON(http.StatusUnauthorized, envelope{"message": msg})
}

// Forbidden sends 403.
func (res *Response) Forbidden(message ...string) {
	msg := first(message, "This action is unauthorized.")
	res.JSON(http.StatusForbidden, envelope{"message": msg})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	msg := first(message, "Not found.")
	res.JSON(http.StatusNotFound, envelope{"message": msg})
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	msg := first(message, "Server Error.")
	res.JSON(http.StatusInternalServerError, envelope{"message": msg})
}

// ValidationError sends 422 with the error bag: {"errors": {...}}.
//
//	res.ValidationError(validator.Errors())
func (res *Response) ValidationError(errors *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errors)
}

// Fail renders err. A *validation.Errors in the chain becomes the 422 bag;
// anything else gets the status of its errs.Kind and {"message": ...}.
// Server error messages are replaced by a generic one unless expose is set.
func (res *Response) Fail(err error, expose bool) {
	var bag *validation.Errors
	if errors.As(err, &bag) {
		res.ValidationError(bag)
		return
	}
	status := errs.HTTPStatus(errs.KindOf(err))
	if status >= http.StatusInternalServerError && !expose {
		res.ServerError()
		return
	}
	res.JSON(status, envelope{"message": err.Error()})
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect performs an HTTP redirect.
//
//	res.Redirect(http.StatusFound, "/dashboard")
func (res *Response) Redirect(status int, url string) {
	res.w.Header().Set("Location", url)
	res.w.WriteHeader(status)
}

// RedirectTo performs a 302 redirect.
func (res *Response) RedirectTo(url string) {
	res.Redirect(http.StatusFound, url)
}

// RedirectBack redirects to the Referer header (or fallback URL).
func (res *Response) RedirectBack(r *http.Request, fallback string) {
	ref := r.Referer()
	if ref == "" {
		ref = fallback
	}
	res.Redirect(http.StatusFound, ref)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
