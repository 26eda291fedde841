package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrSourceNotFound     = errors.New("source not found")
	ErrConversionFailed   = errors.New("conversion failed")
	ErrConversionTimeout  = errors.New("conversion timeout")
	ErrRegistrationFailed = errors.New("registration failed")
	ErrConfiguration      = errors.New("configuration error")
)

// Kind names used in run summaries and logs.
const (
	KindCatalogUnavailable = "CatalogUnavailable"
	KindSourceNotFound     = "SourceNotFound"
	KindConversionFailed   = "ConversionFailed"
	KindConversionTimeout  = "ConversionTimeout"
	KindRegistrationFailed = "RegistrationFailed"
	KindConfiguration      = "Configuration"
	KindUnknown            = "Unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrConversionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy name.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCatalogUnavailable):
		return KindCatalogUnavailable
	case errors.Is(err, ErrSourceNotFound):
		return KindSourceNotFound
	case errors.Is(err, ErrConversionTimeout):
		return KindConversionTimeout
	case errors.Is(err, ErrConversionFailed):
		return KindConversionFailed
	case errors.Is(err, ErrRegistrationFailed):
		return KindRegistrationFailed
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

// ErrorDetails is a readable breakdown of a wrapped error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details strips the marker prefix from err so the remaining text can be shown
// to operators next to the kind.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := Kind(err)
	msg := strings.TrimSpace(err.Error())
	for _, marker := range []error{
		ErrCatalogUnavailable,
		ErrSourceNotFound,
		ErrConversionTimeout,
		ErrConversionFailed,
		ErrRegistrationFailed,
		ErrConfiguration,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return ErrorDetails{Kind: kind, Message: msg}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
