// Package repro obtains the local reproduction of the exploit: the receipt
// logs of the reproduced transaction plus the application events emitted by
// the attack contracts.
package repro

import (
	"context"
	"errors"

	"txrecon/internal/domain"
)

var (
	// ErrReverted is returned when the reproduction transaction reverted.
	ErrReverted = errors.New("reproduction transaction reverted")

	// ErrInvalidFixture is returned for an unreadable reproduction fixture.
	ErrInvalidFixture = errors.New("invalid reproduction fixture")
)

// Source produces a local reproduction.
type Source interface {
	Reproduce(ctx context.Context) (*domain.Reproduction, error)
}
