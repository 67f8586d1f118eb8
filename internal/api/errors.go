package api

import (
	"errors"
	"net/http"

	"github.com/dunamismax/pixelshift/internal/domain"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMapping struct {
	kind        error
	status      int
	message     string
	echoDetails bool
}

// errorTable is checked in order; the first matching kind wins and anything
// unmatched falls through to the processing failure row.
var errorTable = []errorMapping{
	{kind: domain.ErrPayloadTooLarge, status: http.StatusRequestEntityTooLarge, message: "Image too large. Maximum size is 4.5MB."},
	{kind: domain.ErrUnsupportedMediaType, status: http.StatusUnsupportedMediaType, message: "Unsupported content type", echoDetails: true},
	{kind: domain.ErrMalformedRequest, status: http.StatusBadRequest, message: "Invalid JSON body", echoDetails: true},
	{kind: domain.ErrProcessingFailure, status: http.StatusInternalServerError, message: "Failed to process image", echoDetails: true},
}

func mapError(err error) (int, errorBody) {
	row := errorTable[len(errorTable)-1]
	for _, candidate := range errorTable {
		if errors.Is(err, candidate.kind) {
			row = candidate
			break
		}
	}

	body := errorBody{Error: row.message}
	if row.echoDetails {
		body.Message = err.Error()
	}
	return row.status, body
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Msg(body.Error)

	writeJSON(w, status, body)
}
