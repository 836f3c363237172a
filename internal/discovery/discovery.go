// Package discovery infers a venue's booking-window length and, when
// possible, its release time-of-day. Three tiers are tried in order, first
// success wins: structured venue metadata, free-text phrase extraction, and
// empirical availability probing. No tier failure ever propagates; the
// resolver always produces a usable schedule.
package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resy-sniper/internal/reservation"
)

// DefaultWindowDays is assumed when no tier produces a window length.
const DefaultWindowDays = 30

// DefaultLookaheads is the empirical probing sequence, largest first.
var DefaultLookaheads = []int{60, 45, 30, 28, 21, 14, 7}

// Prober is the slice of the booking API the resolver needs.
type Prober interface {
	VenueInfo(ctx context.Context, venueID int) (reservation.VenueInfo, error)
	FindSlots(ctx context.Context, venueID int, date string, partySize int) ([]reservation.Slot, error)
}

type Resolver struct {
	probe      Prober
	log        zerolog.Logger
	lookaheads []int
	now        func() time.Time
}

func NewResolver(probe Prober, log zerolog.Logger) *Resolver {
	return &Resolver{
		probe:      probe,
		log:        log,
		lookaheads: DefaultLookaheads,
		now:        time.Now,
	}
}

// Resolve determines the venue's schedule. It cannot fail: when every tier
// comes up empty it falls back to DefaultWindowDays with an unknown release
// time and logs a warning, leaving the caller to rely on pure polling.
func (r *Resolver) Resolve(ctx context.Context, venueID, partySize int) reservation.VenueSchedule {
	info, infoErr := r.probe.VenueInfo(ctx, venueID)
	if infoErr != nil {
		r.log.Debug().Err(infoErr).Int("venue_id", venueID).Msg("venue metadata probe failed")
	}

	// Tier 1: explicit structured fields.
	if infoErr == nil && info.WindowDays != nil {
		return reservation.VenueSchedule{WindowDays: *info.WindowDays, ReleaseTime: info.ReleaseTime}
	}

	// Tier 2: phrase extraction over the venue's free text.
	if infoErr == nil && info.Description != "" {
		window, haveWindow := ExtractWindowDays(info.Description)
		release, haveRelease := ExtractReleaseTime(info.Description)
		if haveWindow || haveRelease {
			if !haveWindow {
				window = DefaultWindowDays
			}
			return reservation.VenueSchedule{WindowDays: window, ReleaseTime: release}
		}
	}

	// Tier 3: probe live availability at descending look-ahead day counts.
	today := r.now()
	for _, days := range r.lookaheads {
		date := today.AddDate(0, 0, days).Format("2006-01-02")
		slots, err := r.probe.FindSlots(ctx, venueID, date, partySize)
		if err != nil {
			r.log.Debug().Err(err).Int("venue_id", venueID).Int("lookahead_days", days).
				Msg("empirical discovery probe failed")
			continue
		}
		if len(slots) > 0 {
			r.log.Info().Int("venue_id", venueID).Int("window_days", days).
				Msg("booking window found by empirical probing")
			return reservation.VenueSchedule{WindowDays: days}
		}
	}

	r.log.Warn().Int("venue_id", venueID).Int("window_days", DefaultWindowDays).
		Msg("venue schedule discovery failed, assuming default window and falling back to polling")
	return reservation.VenueSchedule{WindowDays: DefaultWindowDays}
}
