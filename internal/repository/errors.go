package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/fjod/go_shop/internal/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// wrapErr marks timeouts and network failures as domain.ErrTransient so
// callers can answer with a retryable failure.
func wrapErr(msg string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
