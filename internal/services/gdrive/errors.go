package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"transponster/internal/services"
)

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("drive %s: %w", op, err)
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return services.Wrap(services.ErrTransport, "drive", op, "", err)
	}
	switch {
	case isRateLimited(gerr):
		s.limiter.Cooldown(0)
		return services.Wrap(services.ErrQuota, "drive", op, "", err)
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "drive", op, "", err)
	case gerr.Code == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "drive", op, "", err)
	case gerr.Code >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "drive", op, "", err)
	default:
		return services.Wrap(services.ErrTransport, "drive", op, "", err)
	}
}

func isRateLimited(gerr *googleapi.Error) bool {
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
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
