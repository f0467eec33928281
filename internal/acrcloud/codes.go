package acrcloud

import (
	"fmt"

	"acrscan/internal/match"
	"acrscan/internal/services"
)

// Status codes returned in Response.Status.Code.
const (
	CodeOK                = 0
	CodeNoResult          = 1001
	CodeRecordingError    = 2000
	CodeInitTimeout       = 2001
	CodeMetadataParse     = 2002
	CodeNoFingerprint     = 2004
	CodeTimeout           = 2005
	CodeServerError       = 3000
	CodeInvalidAccessKey  = 3001
	CodeContentTooLarge   = 3002
	CodeLimitExceeded     = 3003
	CodeInvalidParameters = 3006
	CodeInvalidSignature  = 3014
	CodeQPSLimit          = 3015
)

// StatusFor maps a response code onto the status recorded on window events.
func StatusFor(code int) match.Status {
	switch code {
	case CodeOK:
		return match.StatusOK
	case CodeNoResult:
		return match.StatusNoResult
	default:
		return match.StatusOther
	}
}

// CodeError classifies a non-OK response code. Codes describing the window
// itself (no result, no fingerprint) return nil and become events with the
// matching status.
func CodeError(code int, msg string) error {
	detail := fmt.Sprintf("code %d: %s", code, msg)
	switch code {
	case CodeOK, CodeNoResult, CodeNoFingerprint, CodeRecordingError:
		return nil
	case CodeInitTimeout, CodeTimeout, CodeServerError, CodeLimitExceeded, CodeQPSLimit:
		return services.Wrap(services.ErrTransient, "acrcloud", "identify", detail, nil)
	case CodeInvalidAccessKey, CodeInvalidSignature:
		return services.Wrap(services.ErrConfiguration, "acrcloud", "identify", detail, nil)
	case CodeContentTooLarge, CodeInvalidParameters:
		return services.Wrap(services.ErrValidation, "acrcloud", "identify", detail, nil)
	case CodeMetadataParse:
		return services.Wrap(services.ErrMalformed, "acrcloud", "identify", detail, nil)
	default:
		return nil
	}
}
