package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "tckt/pkg/domain-errors"
	"tckt/pkg/platform/validation"
)

// Validatable is a request body that checks and parses itself once decoded.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON body of r into T and validates it.
// On failure it logs, writes the error response and returns false.
//
// A body cut off by http.MaxBytesReader is reported as invalid_input naming
// the limit. Malformed JSON is bad_request. Validation errors keep their
// domain code, and plain errors become invalid_input.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, decodeError(err))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if !errors.As(err, &domainErr) {
			err = dErrors.New(dErrors.CodeInvalidInput, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return validation.BodyTooLarge(tooLarge.Limit)
	}
	return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
}
