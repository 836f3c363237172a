package notify

import (
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/reservation"
	"github.com/example/resy-sniper/internal/resy"
)

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		SMTPServer:  "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "bot@example.com",
		ToAddress:   "me@example.com",
	}
}

func testSlot() reservation.Slot {
	return reservation.Slot{
		ConfigID:  "cfg-1",
		Start:     time.Date(2030, time.May, 1, 19, 0, 0, 0, time.UTC),
		BookToken: "tok-1",
	}
}

func TestEmailerSendsToConfiguredAddress(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	e := NewEmailer(testEmailConfig(), "secret", zerolog.Nop())
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	tgt := config.Target{VenueName: "Chez Test", PartySize: 2}
	err := e.Success(tgt, testSlot(), resy.Confirmation{ResyToken: "rt-abc"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"me@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Reservation booked: Chez Test")
	assert.Contains(t, string(gotMsg), "Wednesday, May 1, 2030")
	assert.Contains(t, string(gotMsg), "7:00 PM")
	assert.Contains(t, string(gotMsg), "rt-abc")
}

func TestEmailerWrapsSendError(t *testing.T) {
	e := NewEmailer(testEmailConfig(), "secret", zerolog.Nop())
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}
	err := e.Success(config.Target{VenueName: "Chez Test"}, testSlot(), resy.Confirmation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send notification email")
}

func TestLogOnlyNeverFails(t *testing.T) {
	n := LogOnly{Log: zerolog.Nop()}
	assert.NoError(t, n.Success(config.Target{VenueName: "Chez Test"}, testSlot(), resy.Confirmation{ReservationID: 99}))
}
