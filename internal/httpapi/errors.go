package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"surveydash/internal/pipeline"
	"surveydash/internal/source/airtable"
	"surveydash/internal/source/util"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`

		UpstreamStatus int    `json:"upstream_status,omitempty"`
		UpstreamBody   string `json:"upstream_body,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// fetchFailure classifies a pipeline error for API and dashboard callers.
type fetchFailure struct {
	Status         int
	Code           string
	Message        string
	UpstreamStatus int
	UpstreamBody   string
}

func classifyFetchError(err error) fetchFailure {
	if fe, ok := airtable.AsFetchError(err); ok {
		return fetchFailure{
			Status:         http.StatusBadGateway,
			Code:           "upstream_error",
			Message:        "upstream returned " + fe.Status,
			UpstreamStatus: fe.StatusCode,
			UpstreamBody:   util.Truncate(fe.Body, 2048),
		}
	}
	switch {
	case errors.Is(err, pipeline.ErrNoFetcher):
		return fetchFailure{Status: http.StatusServiceUnavailable, Code: "not_configured", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return fetchFailure{Status: http.StatusGatewayTimeout, Code: "upstream_timeout", Message: err.Error()}
	case errors.Is(err, airtable.ErrRepeatedOffset):
		return fetchFailure{Status: http.StatusBadGateway, Code: "upstream_error", Message: err.Error()}
	default:
		return fetchFailure{Status: http.StatusBadGateway, Code: "fetch_failed", Message: err.Error()}
	}
}

func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	f := classifyFetchError(err)
	var e APIError
	e.Error.Code = f.Code
	e.Error.Message = f.Message
	e.Error.RequestID = RequestIDFrom(r.Context())
	e.Error.UpstreamStatus = f.UpstreamStatus
	e.Error.UpstreamBody = f.UpstreamBody
	WriteJSON(w, f.Status, e)
}
