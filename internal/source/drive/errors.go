package drive

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"google.golang.org/api/googleapi"
)

// classify maps Drive API failures onto the domain taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return domain.ErrMissingCredentials.WithCause(err)
		case gerr.Code == http.StatusNotFound:
			return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "drive resource not found", err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500 || isRateLimitReason(gerr):
			return domain.NewTransientError("drive", err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransientError("drive", err)
	}
	return err
}

// isRateLimited reports whether err is a quota rejection that should trigger
// a cool-down.
func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || isRateLimitReason(gerr)
}

// Drive reports per-user quota exhaustion as 403 with a reason.
func isRateLimitReason(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
