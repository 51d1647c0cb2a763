package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"compliance-agent/internal/models"

	"google.golang.org/api/googleapi"
)

var quotaMarkers = []string{"429", "resource_exhausted", "quota", "rate limit"}

// IsQuotaError reports whether err means the translator refused the call
// because of quota or rate limits
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	// our own deadline or cancellation is never the provider refusing
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isPermanent errors are not retried and do not trip the breaker
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrUnsupportedDocument) || IsQuotaError(err)
}
