package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceIO marks download or upload failures against the object store.
	ErrSourceIO = errors.New("source io error")
	// ErrTranscode marks nonzero encoder exits and probe failures.
	ErrTranscode = errors.New("transcode error")
	// ErrExternalTool marks failures of other external processes.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks malformed input that cannot be retried as-is.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks broken deploy-time configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing jobs or companion records.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureMessage extracts the operator-facing message from a pipeline error,
// stripping the sentinel prefix when present.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrSourceIO, ErrTranscode, ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(message, prefix))
		}
	}
	return message
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
