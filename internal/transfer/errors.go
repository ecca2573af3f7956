package transfer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooLarge marks bodies that exceed the configured size limit.
var ErrTooLarge = errors.New("archive exceeds size limit")

// TransferError describes a failed download. StatusCode is zero when the
// request never produced an HTTP response.
type TransferError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransferError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.StatusCode != 0 {
		status := strings.TrimSpace(e.Status)
		if status == "" {
			status = fmt.Sprintf("%d", e.StatusCode)
		}
		return fmt.Sprintf("fetch %s: http %s", e.URL, status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed", e.URL)
}

func (e *TransferError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
