package httpapi

import (
	"encoding/json"
	"net/http"

	"imaged/internal/engine"
	"imaged/internal/pipeline"
	"imaged/internal/registry"
	"imaged/internal/textgen"
	"imaged/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500.
func statusForError(err error) int {
	switch {
	case engine.IsValidation(err), textgen.IsValidation(err):
		return http.StatusBadRequest
	case registry.IsUnknownFamily(err), pipeline.IsComponentMissing(err), textgen.IsModelMissing(err):
		return http.StatusNotFound
	case engine.IsTooBusy(err):
		return http.StatusTooManyRequests
	case engine.IsResourceExhausted(err), pipeline.IsBackendUnavailable(err), textgen.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeDomainError maps err to a status and writes the payload. Batch
// failures additionally carry the artifacts persisted before the failure so
// callers can keep partial work.
func writeDomainError(w http.ResponseWriter, err error) int {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue_full")
	}

	resp := types.ErrorResponse{Error: err.Error(), Code: status}
	if partial, ok := engine.PartialArtifacts(err); ok {
		resp.Completed = len(partial)
		resp.Partial = partial
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
	return status
}
