// Package resy is a minimal Resy API client covering the probe → details →
// book request flow, plus the venue metadata and calendar probes used by
// schedule discovery. It requires an API key and auth token captured from an
// authenticated browser session.
package resy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/resy-sniper/internal/reservation"
)

const defaultBaseURL = "https://api.resy.com"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Credentials struct {
	APIKey    string
	AuthToken string
}

type Client struct {
	hc    *http.Client
	creds Credentials
	base  string
}

// Confirmation is the booking commit response.
type Confirmation struct {
	ResyToken     string `json:"resy_token"`
	ReservationID int64  `json:"reservation_id"`
}

// ID returns the best available confirmation identifier.
func (c Confirmation) ID() string {
	if c.ResyToken != "" {
		return c.ResyToken
	}
	if c.ReservationID != 0 {
		return strconv.FormatInt(c.ReservationID, 10)
	}
	return "N/A"
}

func New(creds Credentials) *Client {
	return &Client{
		hc:    &http.Client{Timeout: 10 * time.Second},
		creds: creds,
		base:  defaultBaseURL,
	}
}

// NewWithBaseURL is used by tests to point the client at a local server.
func NewWithBaseURL(creds Credentials, base string) *Client {
	c := New(creds)
	c.base = strings.TrimRight(base, "/")
	return c
}

func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/2/user", "", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		var r struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &r)
		if r.Message != "" {
			return fmt.Errorf("resy ping failed: %s (status=%d)", r.Message, status)
		}
		return fmt.Errorf("resy ping failed (status=%d)", status)
	}
	return nil
}

type findResponse struct {
	Results struct {
		Venues []struct {
			Slots []struct {
				Date struct {
					Start string `json:"start"`
				} `json:"date"`
				Config struct {
					Token string `json:"token"`
				} `json:"config"`
			} `json:"slots"`
		} `json:"venues"`
	} `json:"results"`
}

func (c *Client) find(ctx context.Context, venueID int, date string, partySize int) (findResponse, error) {
	params := map[string]string{
		"party_size": strconv.Itoa(partySize),
		"venue_id":   strconv.Itoa(venueID),
		"day":        date,
		// Deprecated but still required by the endpoint.
		"lat":  "0",
		"long": "0",
	}
	status, body, err := c.do(ctx, http.MethodGet, "/4/find", "", params, nil)
	if err != nil {
		return findResponse{}, err
	}
	if status != http.StatusOK {
		return findResponse{}, fmt.Errorf("find failed (status=%d)", status)
	}
	var res findResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return findResponse{}, err
	}
	return res, nil
}

// FindSlots returns the available slots for a venue/date/party-size query.
// Slots missing a config token or carrying an unparseable start time are
// skipped. An empty result is not an error.
func (c *Client) FindSlots(ctx context.Context, venueID int, date string, partySize int) ([]reservation.Slot, error) {
	res, err := c.find(ctx, venueID, date, partySize)
	if err != nil {
		return nil, err
	}
	var out []reservation.Slot
	for _, v := range res.Results.Venues {
		for _, s := range v.Slots {
			if s.Config.Token == "" {
				continue
			}
			start, err := time.Parse("2006-01-02 15:04:05", s.Date.Start)
			if err != nil {
				continue
			}
			out = append(out, reservation.Slot{ConfigID: s.Config.Token, Start: start})
		}
	}
	return out, nil
}

// IsDateOnCalendar reports whether the venue appears in the availability
// results for a date at all, regardless of open-slot count. A venue shows a
// date with zero open slots the moment release happens, so calendar
// visibility (not slot availability) is the release-detection signal.
func (c *Client) IsDateOnCalendar(ctx context.Context, venueID int, date string, partySize int) (bool, error) {
	res, err := c.find(ctx, venueID, date, partySize)
	if err != nil {
		return false, err
	}
	return len(res.Results.Venues) > 0, nil
}

type venueAvailability struct {
	BookingWindowDays *int   `json:"booking_window_days"`
	LeadTimeInDays    *int   `json:"lead_time_in_days"`
	ReleaseTime       string `json:"release_time"`
}

type venueInfoResponse struct {
	venueAvailability
	Availability venueAvailability `json:"availability"`
	NeedToKnow   string            `json:"need_to_know"`
	Metadata     struct {
		Description string `json:"description"`
	} `json:"metadata"`
}

// VenueInfo fetches venue metadata for schedule discovery. The structured
// window/release fields are undocumented upstream and frequently absent;
// both the top level and the nested availability object are checked.
func (c *Client) VenueInfo(ctx context.Context, venueID int) (reservation.VenueInfo, error) {
	params := map[string]string{"id": strconv.Itoa(venueID)}
	status, body, err := c.do(ctx, http.MethodGet, "/3/venue", "", params, nil)
	if err != nil {
		return reservation.VenueInfo{}, err
	}
	if status != http.StatusOK {
		return reservation.VenueInfo{}, fmt.Errorf("venue info failed (status=%d)", status)
	}
	var res venueInfoResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return reservation.VenueInfo{}, err
	}

	info := reservation.VenueInfo{}
	for _, w := range []*int{res.BookingWindowDays, res.LeadTimeInDays, res.Availability.BookingWindowDays, res.Availability.LeadTimeInDays} {
		if w != nil {
			info.WindowDays = w
			break
		}
	}
	info.ReleaseTime = res.ReleaseTime
	if info.ReleaseTime == "" {
		info.ReleaseTime = res.Availability.ReleaseTime
	}
	info.Description = strings.TrimSpace(res.NeedToKnow + "\n" + res.Metadata.Description)
	return info, nil
}

// GetBookingToken exchanges a slot's config token for a short-lived booking
// token via the details endpoint.
func (c *Client) GetBookingToken(ctx context.Context, configID, date string, partySize int) (string, error) {
	payload, err := json.Marshal(struct {
		ConfigID  string `json:"config_id"`
		Day       string `json:"day"`
		PartySize int    `json:"party_size"`
	}{configID, date, partySize})
	if err != nil {
		return "", err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/3/details", "application/json", nil, payload)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", fmt.Errorf("details failed (status=%d)", status)
	}
	var res struct {
		BookToken struct {
			Value string `json:"value"`
		} `json:"book_token"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", err
	}
	if res.BookToken.Value == "" {
		return "", errors.New("no book_token in details response")
	}
	return res.BookToken.Value, nil
}

// Book commits a booking token against the given payment method.
func (c *Client) Book(ctx context.Context, bookToken string, paymentMethodID int) (Confirmation, error) {
	form := url.Values{}
	form.Set("book_token", bookToken)
	form.Set("struct_payment_method", fmt.Sprintf(`{"id":%d}`, paymentMethodID))
	form.Set("source_id", "resy.com-venue-details")

	status, body, err := c.do(ctx, http.MethodPost, "/3/book", "application/x-www-form-urlencoded", nil, []byte(form.Encode()))
	if err != nil {
		return Confirmation{}, err
	}
	if status >= 400 {
		return Confirmation{}, fmt.Errorf("book failed (status=%d)", status)
	}
	var conf Confirmation
	if err := json.Unmarshal(body, &conf); err != nil {
		return Confirmation{}, err
	}
	return conf, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", "https://resy.com")
	req.Header.Set("Referer", "https://resy.com/")
	req.Header.Set("X-Origin", "https://resy.com")
	req.Header.Set("Cache-Control", "no-cache")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, c.creds.APIKey))
	req.Header.Set("X-Resy-Auth-Token", c.creds.AuthToken)
	req.Header.Set("X-Resy-Universal-Auth", c.creds.AuthToken)

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
