// Package scheduler orchestrates booking jobs against the trigger registry.
// Each target moves through a small state machine: polling, sniping (timed
// burst at a known release instant), or discovering (hourly probing for an
// unknown release moment), ending at booked. The booked state is the single
// point of synchronization between concurrently executing jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/metrics"
	"github.com/example/resy-sniper/internal/reservation"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/trigger"
)

const (
	// SnipeWindow bounds the burst-retry loop after a release fires.
	SnipeWindow = 60 * time.Second
	// SnipeInterval is the pause between attempts inside a burst.
	SnipeInterval = 500 * time.Millisecond

	// pollCronSpec fires at :00:15, :10:15, ... — 15s past each 10-minute
	// mark, giving the upstream calendar a moment to settle after release.
	pollCronSpec      = "15 */10 * * * *"
	discoveryInterval = time.Hour
)

// Client is the slice of the booking API the scheduler drives.
type Client interface {
	FindSlots(ctx context.Context, venueID int, date string, partySize int) ([]reservation.Slot, error)
	IsDateOnCalendar(ctx context.Context, venueID int, date string, partySize int) (bool, error)
	GetBookingToken(ctx context.Context, configID, date string, partySize int) (string, error)
	Book(ctx context.Context, bookToken string, paymentMethodID int) (resy.Confirmation, error)
}

// ScheduleResolver discovers a venue's booking window and release time.
type ScheduleResolver interface {
	Resolve(ctx context.Context, venueID, partySize int) reservation.VenueSchedule
}

// Notifier delivers the best-effort success notification.
type Notifier interface {
	Success(t config.Target, slot reservation.Slot, conf resy.Confirmation) error
}

type Scheduler struct {
	client   Client
	resolver ScheduleResolver
	notifier Notifier
	registry *trigger.Registry
	cfg      config.Config
	log      zerolog.Logger

	paymentMethodID int

	snipeWindow   time.Duration
	snipeInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	booked  map[int]bool
	targets map[int]*targetState
}

func New(client Client, resolver ScheduleResolver, notifier Notifier, registry *trigger.Registry, cfg config.Config, paymentMethodID int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		client:          client,
		resolver:        resolver,
		notifier:        notifier,
		registry:        registry,
		cfg:             cfg,
		log:             log,
		paymentMethodID: paymentMethodID,
		snipeWindow:     SnipeWindow,
		snipeInterval:   SnipeInterval,
		now:             time.Now,
		booked:          map[int]bool{},
		targets:         map[int]*targetState{},
	}
}

// Start resolves each target's schedule and registers its job topology,
// then starts the trigger registry.
func (s *Scheduler) Start(ctx context.Context) {
	for i, t := range s.cfg.Targets {
		s.startTarget(ctx, i, t)
	}
	s.registry.Start()
	s.log.Info().Int("jobs", len(s.registry.IDs())).Msg("scheduler started")
}

// Stop shuts the trigger registry down cooperatively.
func (s *Scheduler) Stop(ctx context.Context) {
	s.registry.Stop(ctx)
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) startTarget(ctx context.Context, idx int, t config.Target) {
	if t.HasExplicitDate() {
		s.startExplicitDateTarget(idx, t)
		return
	}
	s.startRangeTarget(ctx, idx, t)
}

// startExplicitDateTarget handles the single-date variant. The booking
// window length is unknown (discovery is bypassed), so an explicit release
// time becomes a re-arming daily snipe at that venue-local time; polling
// runs either way as the safety net.
func (s *Scheduler) startExplicitDateTarget(idx int, t config.Target) {
	ts := &targetState{
		phase:      phasePolling,
		candidates: []time.Time{mustDate(t.Date)},
	}
	if t.ReleaseTime != "" {
		ts.phase = phaseSniping
		ts.schedule = reservation.VenueSchedule{ReleaseTime: t.ReleaseTime}
	}
	s.mu.Lock()
	s.targets[idx] = ts
	s.mu.Unlock()

	if t.ReleaseTime != "" {
		s.armDailySnipe(idx, t)
		s.log.Info().Str("venue", t.VenueName).Str("date", t.Date).Str("release_time", t.ReleaseTime).
			Msg("scheduled daily snipe")
	}
	pollID := s.pollID(idx, t)
	_ = s.registry.AddInterval(pollID, time.Duration(t.PollIntervalSeconds)*time.Second, func(ctx context.Context) {
		s.pollJob(ctx, idx, t)
	})
	s.registry.RunNow(pollID, func(ctx context.Context) { s.pollJob(ctx, idx, t) })
	s.log.Info().Str("venue", t.VenueName).Int("interval_s", t.PollIntervalSeconds).Msg("scheduled polling job")
}

// startRangeTarget handles the range/weekday variant: discover the venue
// schedule once, then either snipe each candidate date at the known release
// instant or fall back to hourly release discovery. The shared 10-minute
// poll job always runs, covering misfires and post-window-open date drift.
func (s *Scheduler) startRangeTarget(ctx context.Context, idx int, t config.Target) {
	sched := s.resolver.Resolve(ctx, t.VenueID, t.PartySize)
	if t.ReleaseTime != "" {
		// Explicit release time overrides whatever discovery found.
		sched.ReleaseTime = t.ReleaseTime
	}
	release := sched.ReleaseTime
	if release == "" {
		release = "unknown (hourly discovery enabled)"
	}
	s.log.Info().Str("venue", t.VenueName).Int("window_days", sched.WindowDays).
		Str("release_time", release).Msg("venue schedule resolved")

	candidates := reservation.CandidateDates(mustDate(t.StartDate), mustDate(t.EndDate), t.DaysOfWeek)
	if len(candidates) == 0 {
		s.log.Warn().Str("venue", t.VenueName).
			Msg("no candidate dates, check start_date/end_date/days_of_week")
		return
	}
	s.log.Info().Str("venue", t.VenueName).Int("count", len(candidates)).
		Str("first", dateStr(candidates[0])).Str("last", dateStr(candidates[len(candidates)-1])).
		Msg("candidate dates generated")

	ts := &targetState{schedule: sched, candidates: candidates, windowKnown: true}
	s.mu.Lock()
	s.targets[idx] = ts
	if sched.HasReleaseTime() {
		ts.phase = phaseSniping
		s.scheduleSnipesLocked(idx, t, ts)
	} else {
		ts.phase = phaseDiscovering
		ts.prevOnCalendar = false
		_ = s.registry.AddInterval(s.discoverID(idx, t), discoveryInterval, func(ctx context.Context) {
			s.discoveryJob(ctx, idx, t)
		})
		s.log.Info().Str("venue", t.VenueName).Msg("scheduled hourly discovery job")
	}
	s.mu.Unlock()

	pollID := s.pollID(idx, t)
	_ = s.registry.AddCron(pollID, pollCronSpec, func(ctx context.Context) { s.pollJob(ctx, idx, t) })
	s.registry.RunNow(pollID, func(ctx context.Context) { s.pollJob(ctx, idx, t) })
	s.log.Info().Str("venue", t.VenueName).Msg("scheduled polling job, running now then every 10 min")
}

// scheduleSnipesLocked registers a one-shot snipe for every candidate date
// whose release day is still in the future. Callers hold s.mu.
func (s *Scheduler) scheduleSnipesLocked(idx int, t config.Target, ts *targetState) {
	loc := t.Location()
	today := todayIn(s.now(), loc)
	for _, candidate := range ts.candidates {
		releaseDay := candidate.AddDate(0, 0, -ts.schedule.WindowDays)
		if !releaseDay.After(today) {
			continue
		}
		at := clockOn(releaseDay, ts.schedule.ReleaseTime, loc).UTC()
		cd := dateStr(candidate)
		s.registry.RunAt(s.snipeID(idx, t, cd), at, func(ctx context.Context) {
			s.snipeJob(ctx, idx, t, cd)
		})
		s.log.Info().Str("venue", t.VenueName).Str("date", cd).
			Time("release_at_utc", at).Msg("scheduled snipe")
	}
}

// armDailySnipe schedules the next occurrence of an explicit release time
// and re-arms itself after each unsuccessful burst until the reservation
// date has passed.
func (s *Scheduler) armDailySnipe(idx int, t config.Target) {
	loc := t.Location()
	nowLocal := s.now().In(loc)
	next := clockOn(todayIn(s.now(), loc), t.ReleaseTime, loc)
	if !next.After(nowLocal) {
		next = next.AddDate(0, 0, 1)
	}
	if next.After(clockOn(mustDate(t.Date), "23:59", loc)) {
		s.log.Warn().Str("venue", t.VenueName).Str("date", t.Date).
			Msg("reservation date passed without a successful snipe")
		return
	}
	s.registry.RunAt(s.snipeID(idx, t, "daily"), next.UTC(), func(ctx context.Context) {
		s.snipeJob(ctx, idx, t, t.Date)
		if !s.isBooked(idx) {
			s.armDailySnipe(idx, t)
		}
	})
}

// snipeJob bursts booking attempts for up to the snipe window. It blocks
// its own execution slot on purpose; other job identities keep running.
func (s *Scheduler) snipeJob(ctx context.Context, idx int, t config.Target, date string) {
	if s.isBooked(idx) {
		return
	}
	metrics.SnipeBursts.Inc()
	s.log.Info().Str("venue", t.VenueName).Str("date", date).
		Dur("window", s.snipeWindow).Msg("snipe window opened, bursting")

	deadline := s.now().Add(s.snipeWindow)
	for attempt := 1; s.now().Before(deadline); attempt++ {
		if s.isBooked(idx) {
			return
		}
		s.log.Debug().Str("venue", t.VenueName).Str("date", date).Int("attempt", attempt).Msg("snipe attempt")
		if s.attemptBooking(ctx, idx, t, date) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.snipeInterval):
		}
	}
	s.log.Warn().Str("venue", t.VenueName).Str("date", date).
		Msg("snipe window closed without a successful booking")
}

// pollJob walks the remaining candidate dates in order, attempting each one
// currently inside the booking window, and stops at the first success.
func (s *Scheduler) pollJob(ctx context.Context, idx int, t config.Target) {
	if s.isBooked(idx) {
		return
	}
	s.mu.Lock()
	ts := s.targets[idx]
	if ts == nil {
		s.mu.Unlock()
		return
	}
	candidates := ts.candidates
	windowKnown := ts.windowKnown
	windowDays := ts.schedule.WindowDays
	s.mu.Unlock()

	today := todayIn(s.now(), t.Location())
	for _, candidate := range candidates {
		if s.isBooked(idx) {
			return
		}
		daysUntil := daysBetween(today, candidate)
		if daysUntil < 0 {
			continue
		}
		if windowKnown && daysUntil > windowDays {
			// Not released yet; skip without a network call.
			continue
		}
		if s.attemptBooking(ctx, idx, t, dateStr(candidate)) {
			return
		}
	}
}

// discoveryJob probes whether the next not-yet-released candidate date has
// appeared on the availability calendar. Visibility, not slot availability,
// is the signal: the upstream shows a date with zero open slots the moment
// release happens. A false→true transition infers the release time as the
// current hour and swaps this target from discovering to sniping.
func (s *Scheduler) discoveryJob(ctx context.Context, idx int, t config.Target) {
	if s.isBooked(idx) {
		return
	}
	s.mu.Lock()
	ts := s.targets[idx]
	if ts == nil || ts.phase != phaseDiscovering {
		s.mu.Unlock()
		return
	}
	windowDays := ts.schedule.WindowDays
	s.mu.Unlock()

	metrics.DiscoveryProbes.Inc()
	loc := t.Location()
	probeDate := dateStr(todayIn(s.now(), loc).AddDate(0, 0, windowDays))
	onCalendar, err := s.client.IsDateOnCalendar(ctx, t.VenueID, probeDate, t.PartySize)
	if err != nil {
		s.log.Debug().Err(err).Str("venue", t.VenueName).Msg("discovery probe failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := ts.prevOnCalendar
	ts.prevOnCalendar = onCalendar
	if !onCalendar || prev {
		return
	}

	// Release detected. The true release instant is somewhere within the
	// last hour, so truncate conservatively.
	inferred := fmt.Sprintf("%02d:00", s.now().In(loc).Hour())
	metrics.ReleaseDetections.Inc()
	s.log.Info().Str("venue", t.VenueName).Str("probe_date", probeDate).
		Str("inferred_release_time", inferred).Msg("date appeared on calendar, scheduling snipes")

	ts.schedule.ReleaseTime = inferred
	ts.phase = phaseSniping
	s.registry.Remove(s.discoverID(idx, t))
	s.scheduleSnipesLocked(idx, t, ts)
}

// removeTargetJobsLocked cancels every job belonging to one target.
// Callers hold s.mu.
func (s *Scheduler) removeTargetJobsLocked(idx int) {
	for _, kind := range []string{"snipe", "poll", "discover"} {
		s.registry.RemovePrefix(fmt.Sprintf("%s_%d_", kind, idx))
	}
}

func (s *Scheduler) snipeID(idx int, t config.Target, date string) string {
	return fmt.Sprintf("snipe_%d_%d_%s", idx, t.VenueID, date)
}

func (s *Scheduler) pollID(idx int, t config.Target) string {
	return fmt.Sprintf("poll_%d_%d", idx, t.VenueID)
}

func (s *Scheduler) discoverID(idx int, t config.Target) string {
	return fmt.Sprintf("discover_%d_%d", idx, t.VenueID)
}

// TargetStatus is a point-in-time snapshot for the status endpoint.
type TargetStatus struct {
	VenueID    int    `json:"venue_id"`
	VenueName  string `json:"venue_name"`
	Phase      string `json:"phase"`
	WindowDays int    `json:"window_days,omitempty"`
	Release    string `json:"release_time,omitempty"`
	Candidates int    `json:"candidate_dates"`
	Booked     bool   `json:"booked"`
}

func (s *Scheduler) Status() []TargetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TargetStatus, 0, len(s.cfg.Targets))
	for i, t := range s.cfg.Targets {
		st := TargetStatus{VenueID: t.VenueID, VenueName: t.VenueName, Booked: s.bookedLocked(i)}
		if ts := s.targets[i]; ts != nil {
			st.Phase = ts.phase.String()
			st.Release = ts.schedule.ReleaseTime
			st.Candidates = len(ts.candidates)
			if ts.windowKnown {
				st.WindowDays = ts.schedule.WindowDays
			}
		}
		out = append(out, st)
	}
	return out
}

// --- date helpers ---

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		// Config validation rejects bad dates before scheduling starts.
		panic(fmt.Sprintf("unvalidated date %q: %v", s, err))
	}
	return d
}

func dateStr(d time.Time) string { return d.Format("2006-01-02") }

// todayIn returns the current calendar date in loc, as a UTC-midnight value
// comparable with parsed candidate dates.
func todayIn(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns b − a in whole days for two UTC-midnight dates.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// clockOn places an "HH:MM" clock value on a calendar date in loc.
func clockOn(date time.Time, hhmm string, loc *time.Location) time.Time {
	mins, err := reservation.ClockMinutes(hhmm)
	if err != nil {
		mins = 0
	}
	return time.Date(date.Year(), date.Month(), date.Day(), mins/60, mins%60, 0, 0, loc)
}
