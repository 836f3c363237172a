// Package config loads and validates the target list and runtime
// credentials. Validation failures are fatal at load time: a target that
// cannot be scheduled correctly must prevent the scheduler from starting.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	yaml "go.yaml.in/yaml/v3"

	"github.com/example/resy-sniper/internal/reservation"
)

const (
	DefaultTimezone     = "America/New_York"
	DefaultPollSeconds  = 60
	DefaultRadiusMinute = 30
)

// Target is one booking objective. Date selection is either an explicit
// Date or a StartDate/EndDate range with DaysOfWeek; time preference is
// either an ordered TimePreferences list or TimeCenter±TimeRadiusMinutes.
type Target struct {
	VenueID   int    `yaml:"venue_id" validate:"required,gt=0"`
	VenueName string `yaml:"venue_name" validate:"required"`
	PartySize int    `yaml:"party_size" validate:"required,gt=0"`

	Date       string   `yaml:"date"`
	StartDate  string   `yaml:"start_date"`
	EndDate    string   `yaml:"end_date"`
	DaysOfWeek []string `yaml:"days_of_week"`

	TimePreferences   []string `yaml:"time_preferences"`
	TimeCenter        string   `yaml:"time_center"`
	TimeRadiusMinutes int      `yaml:"time_radius_minutes" validate:"gte=0"`

	// ReleaseTime, when set, bypasses discovery entirely (snipe mode).
	ReleaseTime string `yaml:"release_time"`

	VenueTimezone       string `yaml:"venue_timezone"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" validate:"gte=0"`
}

// HasExplicitDate reports whether the target names a single date rather
// than a range/weekday policy.
func (t Target) HasExplicitDate() bool { return t.Date != "" }

// UsesPreferenceList reports whether slot selection follows the ordered
// time-preference policy (vs center+radius).
func (t Target) UsesPreferenceList() bool { return len(t.TimePreferences) > 0 }

// Location resolves the venue timezone. Validation guarantees it loads.
func (t Target) Location() *time.Location {
	loc, err := time.LoadLocation(t.VenueTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type EmailConfig struct {
	SMTPServer  string `yaml:"smtp_server" validate:"required"`
	SMTPPort    int    `yaml:"smtp_port" validate:"required,gt=0"`
	FromAddress string `yaml:"from_address" validate:"required,email"`
	ToAddress   string `yaml:"to_address" validate:"required,email"`
}

type Notifications struct {
	Email *EmailConfig `yaml:"email"`
}

type Config struct {
	Targets       []Target      `yaml:"targets" validate:"required,min=1,dive"`
	Notifications Notifications `yaml:"notifications"`

	// StopOnFirstSuccess collapses per-target booked tracking into a
	// process-wide flag: the first success anywhere cancels every job.
	StopOnFirstSuccess bool `yaml:"stop_on_first_success"`
}

// Load reads, defaults, and validates a YAML config file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse is Load without the file read; exported for tests.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	for i := range cfg.Targets {
		applyDefaults(&cfg.Targets[i])
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(t *Target) {
	if t.VenueTimezone == "" {
		t.VenueTimezone = DefaultTimezone
	}
	if t.PollIntervalSeconds == 0 {
		t.PollIntervalSeconds = DefaultPollSeconds
	}
	if t.TimeCenter != "" && t.TimeRadiusMinutes == 0 {
		t.TimeRadiusMinutes = DefaultRadiusMinute
	}
}

var structValidator = validator.New()

func validate(cfg Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Notifications.Email != nil {
		if err := structValidator.Struct(cfg.Notifications.Email); err != nil {
			return fmt.Errorf("invalid notifications.email: %w", err)
		}
	}
	for i, t := range cfg.Targets {
		if err := validateTarget(t); err != nil {
			return fmt.Errorf("target %d (%s): %w", i, t.VenueName, err)
		}
	}
	return nil
}

func validateTarget(t Target) error {
	switch {
	case t.HasExplicitDate():
		if t.StartDate != "" || t.EndDate != "" || len(t.DaysOfWeek) > 0 {
			return fmt.Errorf("date and start_date/end_date/days_of_week are mutually exclusive")
		}
		if err := checkDate(t.Date); err != nil {
			return err
		}
	default:
		if t.StartDate == "" || t.EndDate == "" || len(t.DaysOfWeek) == 0 {
			return fmt.Errorf("either date or start_date+end_date+days_of_week is required")
		}
		if err := checkDate(t.StartDate); err != nil {
			return err
		}
		if err := checkDate(t.EndDate); err != nil {
			return err
		}
		start, _ := time.Parse("2006-01-02", t.StartDate)
		end, _ := time.Parse("2006-01-02", t.EndDate)
		if start.After(end) {
			return fmt.Errorf("start_date %s is after end_date %s", t.StartDate, t.EndDate)
		}
		for _, d := range t.DaysOfWeek {
			if _, ok := reservation.Weekdays[d]; !ok {
				return fmt.Errorf("invalid day of week %q", d)
			}
		}
	}

	switch {
	case t.UsesPreferenceList():
		if t.TimeCenter != "" {
			return fmt.Errorf("time_preferences and time_center are mutually exclusive")
		}
		for _, p := range t.TimePreferences {
			if err := checkClock(p); err != nil {
				return err
			}
		}
	case t.TimeCenter != "":
		if err := checkClock(t.TimeCenter); err != nil {
			return err
		}
	default:
		return fmt.Errorf("either time_preferences or time_center is required")
	}

	if t.ReleaseTime != "" {
		if err := checkClock(t.ReleaseTime); err != nil {
			return err
		}
	}
	if _, err := time.LoadLocation(t.VenueTimezone); err != nil {
		return fmt.Errorf("invalid venue_timezone %q: %w", t.VenueTimezone, err)
	}
	return nil
}

func checkDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return nil
}

func checkClock(s string) error {
	_, err := reservation.ClockMinutes(s)
	return err
}

// Env holds runtime credentials sourced from the environment.
type Env struct {
	APIKey          string
	AuthToken       string
	PaymentMethodID int
	SMTPPassword    string
}

// EnvFromOS reads required credentials; SMTP_PASSWORD is optional and only
// needed when email notifications are configured.
func EnvFromOS() (Env, error) {
	e := Env{
		APIKey:       os.Getenv("RESY_API_KEY"),
		AuthToken:    os.Getenv("RESY_AUTH_TOKEN"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
	}
	if e.APIKey == "" {
		return Env{}, fmt.Errorf("missing required environment variable RESY_API_KEY")
	}
	if e.AuthToken == "" {
		return Env{}, fmt.Errorf("missing required environment variable RESY_AUTH_TOKEN")
	}
	pm := os.Getenv("RESY_PAYMENT_METHOD_ID")
	if pm == "" {
		return Env{}, fmt.Errorf("missing required environment variable RESY_PAYMENT_METHOD_ID")
	}
	id, err := strconv.Atoi(pm)
	if err != nil {
		return Env{}, fmt.Errorf("invalid RESY_PAYMENT_METHOD_ID: %w", err)
	}
	e.PaymentMethodID = id
	return e, nil
}
