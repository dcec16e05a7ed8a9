package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ssgo/zonecore/internal/persist"
)

// BanLookup is the subset of *persist.BanStore the ban filter needs.
// Isolated as an interface so the filter can be tested without a live
// database.
type BanLookup interface {
	Lookup(ctx context.Context, machineID uint32) (*persist.Ban, error)
	IncrementAttempts(ctx context.Context, machineID uint32) error
}

// BanFilter sits in the chain ahead of the module it wraps: it looks up
// the login's machine id, and if a non-expired ban exists, fails the
// request with CustomText including a countdown; otherwise it delegates
// downstream (spec.md §4.6 "ban filter").
type BanFilter struct {
	bans BanLookup
	next Authenticator
}

// NewBanFilter wraps next with a ban check backed by bans.
func NewBanFilter(bans BanLookup, next Authenticator) *BanFilter {
	return &BanFilter{bans: bans, next: next}
}

// Authenticate implements Authenticator.
func (f *BanFilter) Authenticate(req *Request) {
	ban, err := f.bans.Lookup(req.Ctx, req.MachineID)
	if err != nil {
		slog.Error("auth: ban lookup failed, allowing through", "machine_id", req.MachineID, "error", err)
		f.delegate(req)
		return
	}
	if ban == nil {
		f.delegate(req)
		return
	}
	if !ban.ExpiresAt.After(time.Now()) {
		f.delegate(req)
		return
	}

	remaining := time.Until(ban.ExpiresAt).Round(time.Second)
	req.Done(Result{
		OK:         false,
		CustomText: fmt.Sprintf("You have been temporarily kicked for %s (%s remaining)", ban.Reason, remaining),
	})
	if incErr := f.bans.IncrementAttempts(req.Ctx, req.MachineID); incErr != nil {
		slog.Error("auth: recording ban attempt failed", "machine_id", req.MachineID, "error", incErr)
	}
}

func (f *BanFilter) delegate(req *Request) {
	if f.next == nil {
		Default{}.Authenticate(req)
		return
	}
	f.next.Authenticate(req)
}
