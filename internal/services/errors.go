package services

import (
	"errors"
	"fmt"

	"github.com/farellandr/qrticket/internal/store"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrTicketNotFound        = fmt.Errorf("ticket %w", ErrNotFound)
	ErrCodeNotFound          = fmt.Errorf("code %w", ErrNotFound)
	ErrCodeExhausted         = errors.New("code has no uses remaining")
	ErrTicketAlreadyRedeemed = errors.New("ticket already redeemed")
	ErrStoreFailure          = errors.New("store failure")
)

func invalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// IsRetryable reports whether the operation may succeed if repeated. Only
// store failures qualify; every other error is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

// translate maps store outcomes onto service errors. notFound selects which
// entity the caller was addressing.
func translate(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrExhausted):
		return ErrCodeExhausted
	case errors.Is(err, store.ErrAlreadyRedeemed):
		return ErrTicketAlreadyRedeemed
	default:
		return storeFailure(op, err)
	}
}
