// Package quota enforces the soft storage budgets for clubs and the platform.
//
// Checks read current usage and decide without reserving anything, so two
// concurrent uploads can both pass a check that neither would pass in
// sequence. That is accepted for soft quotas.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrQuotaExceeded is returned before any store write when a budget would overflow.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Default budgets.
const (
	DefaultClubLimit     int64 = 100 << 20
	DefaultPlatformLimit int64 = 500 << 20
)

// Usage reports bytes already stored.
type Usage interface {
	ClubBytes(ctx context.Context, clubID uuid.UUID) (int64, error)
	PlatformBytes(ctx context.Context) (int64, error)
}

// Checker compares used + incoming against both ceilings. A zero limit disables that ceiling.
type Checker struct {
	Usage         Usage
	ClubLimit     int64
	PlatformLimit int64
}

// ExceededError carries the numbers behind a rejection.
type ExceededError struct {
	Scope    string
	Used     int64
	Incoming int64
	Limit    int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d used + %d incoming > %d", e.Scope, e.Used, e.Incoming, e.Limit)
}

func (e *ExceededError) Unwrap() error { return ErrQuotaExceeded }

// Check returns nil when incoming bytes fit both budgets.
func (c Checker) Check(ctx context.Context, clubID uuid.UUID, incoming int64) error {
	if c.Usage == nil {
		return nil
	}
	if c.ClubLimit > 0 {
		used, err := c.Usage.ClubBytes(ctx, clubID)
		if err != nil {
			return fmt.Errorf("read club usage: %w", err)
		}
		if used+incoming > c.ClubLimit {
			return &ExceededError{Scope: "club", Used: used, Incoming: incoming, Limit: c.ClubLimit}
		}
	}
	if c.PlatformLimit > 0 {
		used, err := c.Usage.PlatformBytes(ctx)
		if err != nil {
			return fmt.Errorf("read platform usage: %w", err)
		}
		if used+incoming > c.PlatformLimit {
			return &ExceededError{Scope: "platform", Used: used, Incoming: incoming, Limit: c.PlatformLimit}
		}
	}
	return nil
}

// Remaining reports how many bytes the club may still store under its own limit.
func (c Checker) Remaining(ctx context.Context, clubID uuid.UUID) (used, remaining int64, err error) {
	if c.Usage == nil {
		return 0, c.ClubLimit, nil
	}
	used, err = c.Usage.ClubBytes(ctx, clubID)
	if err != nil {
		return 0, 0, fmt.Errorf("read club usage: %w", err)
	}
	remaining = c.ClubLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining, nil
}
