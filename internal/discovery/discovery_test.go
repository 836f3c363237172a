package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resy-sniper/internal/reservation"
)

type fakeProbe struct {
	info    reservation.VenueInfo
	infoErr error

	// slotsByDays maps look-ahead day count to slot count for FindSlots.
	slotsByDays map[int]int
	findErr     error

	infoCalls int
	findCalls int
	probedAt  []int
	now       time.Time
}

func (f *fakeProbe) VenueInfo(ctx context.Context, venueID int) (reservation.VenueInfo, error) {
	f.infoCalls++
	return f.info, f.infoErr
}

func (f *fakeProbe) FindSlots(ctx context.Context, venueID int, date string, partySize int) ([]reservation.Slot, error) {
	f.findCalls++
	d, _ := time.Parse("2006-01-02", date)
	days := int(d.Sub(f.now).Hours() / 24)
	f.probedAt = append(f.probedAt, days)
	if f.findErr != nil {
		return nil, f.findErr
	}
	n := f.slotsByDays[days]
	slots := make([]reservation.Slot, n)
	return slots, nil
}

func newResolver(f *fakeProbe) *Resolver {
	r := NewResolver(f, zerolog.Nop())
	r.now = func() time.Time { return f.now }
	return r
}

func midnightUTC() time.Time {
	return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func TestResolveStructuredTierWins(t *testing.T) {
	w := 21
	f := &fakeProbe{
		now: midnightUTC(),
		info: reservation.VenueInfo{
			WindowDays:  &w,
			ReleaseTime: "09:00",
			Description: "reservations open 30 days in advance", // must be ignored
		},
	}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, reservation.VenueSchedule{WindowDays: 21, ReleaseTime: "09:00"}, got)
	assert.Equal(t, 0, f.findCalls, "tiers 2/3 must not probe availability")
}

func TestResolveStructuredWindowWithoutReleaseTime(t *testing.T) {
	w := 14
	f := &fakeProbe{now: midnightUTC(), info: reservation.VenueInfo{WindowDays: &w}}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, 14, got.WindowDays)
	assert.False(t, got.HasReleaseTime())
}

func TestResolveFreeTextTier(t *testing.T) {
	f := &fakeProbe{
		now:  midnightUTC(),
		info: reservation.VenueInfo{Description: "Tables drop 28 days ahead and the calendar opens at 10am."},
	}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, reservation.VenueSchedule{WindowDays: 28, ReleaseTime: "10:00"}, got)
	assert.Equal(t, 0, f.findCalls, "tier 3 must not run when tier 2 matched")
}

func TestResolveFreeTextReleaseOnlyDefaultsWindow(t *testing.T) {
	f := &fakeProbe{
		now:  midnightUTC(),
		info: reservation.VenueInfo{Description: "the calendar opens at midnight"},
	}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, reservation.VenueSchedule{WindowDays: DefaultWindowDays, ReleaseTime: "00:00"}, got)
}

func TestResolveEmpiricalProbesLargestFirst(t *testing.T) {
	f := &fakeProbe{
		now:         midnightUTC(),
		infoErr:     errors.New("metadata endpoint down"),
		slotsByDays: map[int]int{28: 3, 21: 3, 14: 3, 7: 3},
	}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, reservation.VenueSchedule{WindowDays: 28}, got)
	require.Equal(t, []int{60, 45, 30, 28}, f.probedAt, "probes run in descending order and stop at first hit")
}

func TestResolveEmpiricalAllEmptyFallsBack(t *testing.T) {
	f := &fakeProbe{now: midnightUTC(), infoErr: errors.New("down")}
	got := newResolver(f).Resolve(context.Background(), 1, 2)

	assert.Equal(t, reservation.VenueSchedule{WindowDays: DefaultWindowDays}, got)
	assert.Equal(t, len(DefaultLookaheads), f.findCalls)
}

func TestResolveSwallowsProbeErrors(t *testing.T) {
	f := &fakeProbe{now: midnightUTC(), infoErr: errors.New("down"), findErr: errors.New("503")}
	got := newResolver(f).Resolve(context.Background(), 1, 2)
	assert.Equal(t, reservation.VenueSchedule{WindowDays: DefaultWindowDays}, got)
}
