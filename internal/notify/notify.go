// Package notify delivers booking-success notifications. Delivery is
// best-effort by contract: a reservation is held whether or not the message
// goes out, so callers log failures and move on.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/reservation"
	"github.com/example/resy-sniper/internal/resy"
)

// Emailer sends one plain-text email per successful booking over SMTP with
// STARTTLS and PLAIN auth.
type Emailer struct {
	cfg      config.EmailConfig
	password string
	log      zerolog.Logger

	// send is swapped in tests; smtp.SendMail dials, STARTTLSes, auths.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailer(cfg config.EmailConfig, password string, log zerolog.Logger) *Emailer {
	return &Emailer{cfg: cfg, password: password, log: log, send: smtp.SendMail}
}

func (e *Emailer) Success(t config.Target, slot reservation.Slot, conf resy.Confirmation) error {
	msg := buildMessage(e.cfg.FromAddress, e.cfg.ToAddress, t, slot, conf)
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPServer, e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.FromAddress, e.password, e.cfg.SMTPServer)
	if err := e.send(addr, auth, e.cfg.FromAddress, []string{e.cfg.ToAddress}, msg); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	e.log.Info().Str("to", e.cfg.ToAddress).Str("venue", t.VenueName).Msg("notification email sent")
	return nil
}

func buildMessage(from, to string, t config.Target, slot reservation.Slot, conf resy.Confirmation) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Reservation booked: %s\r\n", t.VenueName)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Booked a table for %d at %s.\r\n\r\n", t.PartySize, t.VenueName)
	fmt.Fprintf(&b, "Date: %s\r\n", slot.Start.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Time: %s\r\n", slot.Start.Format("3:04 PM"))
	fmt.Fprintf(&b, "Confirmation: %s\r\n", conf.ID())
	fmt.Fprintf(&b, "\r\nSent %s\r\n", time.Now().UTC().Format(time.RFC1123))
	return []byte(b.String())
}

// LogOnly is the notifier used when no email settings are configured.
type LogOnly struct {
	Log zerolog.Logger
}

func (l LogOnly) Success(t config.Target, slot reservation.Slot, conf resy.Confirmation) error {
	l.Log.Info().Str("venue", t.VenueName).Int("party_size", t.PartySize).
		Str("date", slot.Start.Format("2006-01-02")).Str("time", slot.Start.Format("15:04")).
		Str("confirmation", conf.ID()).Msg("reservation booked")
	return nil
}
