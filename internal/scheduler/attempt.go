package scheduler

import (
	"context"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/metrics"
	"github.com/example/resy-sniper/internal/reservation"
)

// attemptBooking is the transactional unit behind every job: probe, select,
// exchange the config token, commit, notify. Each step is a possible
// failure point; none of them may leave the booked state set on failure.
// Returns true only when the commit succeeded.
func (s *Scheduler) attemptBooking(ctx context.Context, idx int, t config.Target, date string) bool {
	if s.isBooked(idx) {
		metrics.Attempts.WithLabelValues(metrics.OutcomeShortCircuit).Inc()
		return false
	}

	slots, err := s.client.FindSlots(ctx, t.VenueID, date, t.PartySize)
	if err != nil {
		s.log.Error().Err(err).Str("venue", t.VenueName).Str("date", date).Msg("availability probe failed")
		metrics.Attempts.WithLabelValues(metrics.OutcomeProbeError).Inc()
		return false
	}

	slot, ok := pickSlot(t, slots)
	if !ok {
		// Expected and frequent; not an error.
		s.log.Debug().Str("venue", t.VenueName).Str("date", date).Int("slots", len(slots)).
			Msg("no slot matched the time preference")
		metrics.Attempts.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return false
	}
	s.log.Info().Str("venue", t.VenueName).Str("date", date).
		Str("time", slot.Start.Format("15:04")).Msg("preferred slot found, attempting to book")

	token, err := s.client.GetBookingToken(ctx, slot.ConfigID, date, t.PartySize)
	if err != nil {
		s.log.Error().Err(err).Str("venue", t.VenueName).Str("date", date).Msg("booking token exchange failed")
		metrics.Attempts.WithLabelValues(metrics.OutcomeDetailsError).Inc()
		return false
	}
	slot.BookToken = token

	conf, err := s.client.Book(ctx, token, s.paymentMethodID)
	if err != nil {
		s.log.Error().Err(err).Str("venue", t.VenueName).Str("date", date).Msg("booking commit failed")
		metrics.Attempts.WithLabelValues(metrics.OutcomeCommitError).Inc()
		return false
	}

	if !s.markBooked(idx) {
		// A concurrent attempt for this target committed first. The
		// reservation here is real either way; report success.
		s.log.Warn().Str("venue", t.VenueName).Str("date", date).
			Msg("booking committed after another attempt already succeeded")
	}
	metrics.Attempts.WithLabelValues(metrics.OutcomeBooked).Inc()
	metrics.Bookings.Inc()
	s.log.Info().Str("venue", t.VenueName).Str("date", date).
		Str("confirmation", conf.ID()).Msg("booking succeeded")

	if err := s.notifier.Success(t, slot, conf); err != nil {
		s.log.Error().Err(err).Str("venue", t.VenueName).
			Msg("notification failed (booking still succeeded)")
	}
	return true
}

func pickSlot(t config.Target, slots []reservation.Slot) (reservation.Slot, bool) {
	if t.UsesPreferenceList() {
		return reservation.ChooseSlotStrict(t.TimePreferences, slots)
	}
	center, err := reservation.ClockMinutes(t.TimeCenter)
	if err != nil {
		return reservation.Slot{}, false
	}
	return reservation.ChooseSlotNearest(center, t.TimeRadiusMinutes, slots)
}
