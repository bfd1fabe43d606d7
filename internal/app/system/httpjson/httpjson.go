// Package httpjson carries the JSON request/response conventions shared by
// every handler: one envelope for errors, one decoder with a size cap.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/uncip/guardhub/internal/app/system/apperr"
)

// maxBodyBytes caps request bodies; payloads here are small JSON documents.
const maxBodyBytes = 1 << 20

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Respond writes v as JSON with the given status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error maps err through the apperr taxonomy and writes the error envelope.
// Unclassified errors are logged and reported with a generic message.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)

	var e *apperr.Error
	detail := errorDetail{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.Public(err),
	}
	if errors.As(err, &e) {
		detail.Field = e.Field
	} else if log != nil {
		log.Error("unclassified error", zap.Error(err))
	}

	Respond(w, status, errorBody{Error: detail})
}

// Decode reads a JSON request body into dst. Unknown fields and oversized
// bodies are rejected as invalid input.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.E(apperr.Invalid, "malformed JSON body")
	}
	return nil
}
