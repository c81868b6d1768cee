package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
)

var (
	ErrUnavailable = fmt.Errorf("%w: server unavailable", common.ErrTransport)
	ErrBadStatus   = fmt.Errorf("%w: unexpected status", common.ErrTransport)
)

// mapError folds any failure into the transport taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrTransport) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
