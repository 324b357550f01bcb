// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package utils carries the shared plumbing of the REST handlers: JSON
// parsing and writing, and error-returning handlers mapped onto statuses.
package utils

import (
	"encoding/json"
	"io"
	"net/http"
)

// statusError pins a http status to a cause.
type statusError struct {
	cause  error
	status int
}

func (e *statusError) Error() string {
	return e.cause.Error()
}

// BadRequest marks a malformed request, responded with 400.
func BadRequest(cause error) error {
	return &statusError{cause, http.StatusBadRequest}
}

// Forbidden marks a well-formed request that was refused, responded with 403.
func Forbidden(cause error) error {
	return &statusError{cause, http.StatusForbidden}
}

// NotFound marks a request for a missing resource, responded with 404.
func NotFound(cause error) error {
	return &statusError{cause, http.StatusNotFound}
}

// HandlerFunc is a http.HandlerFunc returning an error. Errors created by
// the helpers above respond with their status, anything else responds 500.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc converts a HandlerFunc to a http.HandlerFunc.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		if se, ok := err.(*statusError); ok {
			http.Error(w, se.cause.Error(), se.status)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// JSONContentType is the content type of all JSON responses.
const JSONContentType = "application/json; charset=utf-8"

// ParseJSON decodes a JSON object, rejecting fields the target does not know.
func ParseJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// WriteJSON responds an object in JSON encoding.
func WriteJSON(w http.ResponseWriter, obj interface{}) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(obj)
}

// M shortcut for type map[string]interface{}.
type M map[string]interface{}
