package resy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(Credentials{APIKey: "test-key", AuthToken: "test-token"}, srv.URL)
}

const findBody = `{
  "results": {
    "venues": [
      {
        "slots": [
          {"config": {"token": "cfg-abc"}, "date": {"start": "2026-03-15 19:00:00"}},
          {"config": {}, "date": {"start": "2026-03-15 19:30:00"}},
          {"config": {"token": "cfg-bad"}, "date": {"start": "not-a-date"}},
          {"config": {"token": "cfg-def"}, "date": {"start": "2026-03-15 20:00:00"}}
        ]
      }
    ]
  }
}`

func TestFindSlotsParsesAndSkipsBadEntries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/4/find", r.URL.Path)
		assert.Equal(t, "5286", r.URL.Query().Get("venue_id"))
		assert.Equal(t, "2026-03-15", r.URL.Query().Get("day"))
		assert.Equal(t, "2", r.URL.Query().Get("party_size"))
		assert.Equal(t, `ResyAPI api_key="test-key"`, r.Header.Get("Authorization"))
		assert.Equal(t, "test-token", r.Header.Get("X-Resy-Auth-Token"))
		_, _ = w.Write([]byte(findBody))
	})

	slots, err := c.FindSlots(context.Background(), 5286, "2026-03-15", 2)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "cfg-abc", slots[0].ConfigID)
	assert.Equal(t, time.Date(2026, time.March, 15, 19, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, "cfg-def", slots[1].ConfigID)
}

func TestFindSlotsEmptyVenues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[]}}`))
	})
	slots, err := c.FindSlots(context.Background(), 5286, "2026-03-15", 2)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindSlotsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.FindSlots(context.Background(), 5286, "2026-03-15", 2)
	assert.Error(t, err)
}

func TestIsDateOnCalendar(t *testing.T) {
	// A venue entry with zero slots still counts as visible.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[{"slots":[]}]}}`))
	})
	on, err := c.IsDateOnCalendar(context.Background(), 5286, "2026-03-15", 2)
	require.NoError(t, err)
	assert.True(t, on)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"venues":[]}}`))
	})
	on, err = c.IsDateOnCalendar(context.Background(), 5286, "2026-03-15", 2)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestVenueInfoStructuredFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/venue", r.URL.Path)
		assert.Equal(t, "5286", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"booking_window_days": 21, "release_time": "09:00"}`))
	})
	info, err := c.VenueInfo(context.Background(), 5286)
	require.NoError(t, err)
	require.NotNil(t, info.WindowDays)
	assert.Equal(t, 21, *info.WindowDays)
	assert.Equal(t, "09:00", info.ReleaseTime)
}

func TestVenueInfoNestedAvailability(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"availability": {"lead_time_in_days": 14, "release_time": "10:00"}, "need_to_know": "Reservations open 14 days in advance at 10am."}`))
	})
	info, err := c.VenueInfo(context.Background(), 5286)
	require.NoError(t, err)
	require.NotNil(t, info.WindowDays)
	assert.Equal(t, 14, *info.WindowDays)
	assert.Equal(t, "10:00", info.ReleaseTime)
	assert.Contains(t, info.Description, "14 days in advance")
}

func TestGetBookingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/details", r.URL.Path)
		var payload struct {
			ConfigID  string `json:"config_id"`
			Day       string `json:"day"`
			PartySize int    `json:"party_size"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "cfg-abc", payload.ConfigID)
		assert.Equal(t, "2026-03-15", payload.Day)
		assert.Equal(t, 2, payload.PartySize)
		_, _ = w.Write([]byte(`{"book_token":{"value":"btoken-xyz"}}`))
	})
	token, err := c.GetBookingToken(context.Background(), "cfg-abc", "2026-03-15", 2)
	require.NoError(t, err)
	assert.Equal(t, "btoken-xyz", token)
}

func TestGetBookingTokenMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.GetBookingToken(context.Background(), "cfg-abc", "2026-03-15", 2)
	assert.ErrorContains(t, err, "book_token")
}

func TestBookSendsFormPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/book", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "btoken-xyz", r.PostForm.Get("book_token"))
		assert.Equal(t, `{"id":42}`, r.PostForm.Get("struct_payment_method"))
		_, _ = w.Write([]byte(`{"resy_token":"RES-123","reservation_id":99}`))
	})
	conf, err := c.Book(context.Background(), "btoken-xyz", 42)
	require.NoError(t, err)
	assert.Equal(t, "RES-123", conf.ResyToken)
	assert.Equal(t, "RES-123", conf.ID())
}

func TestBookHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	_, err := c.Book(context.Background(), "btoken-xyz", 42)
	assert.Error(t, err)
}

func TestPingSurfacesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	})
	err := c.Ping(context.Background())
	assert.ErrorContains(t, err, "invalid token")
}
