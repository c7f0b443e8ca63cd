// Package config loads the single immutable configuration object for a
// harvest run. Values come from the environment (optionally seeded from a
// .env file); every component receives the subset it needs and no package
// reads ambient state after startup.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fjordsol/metharvest/internal/domain"
)

// defaultStations is the Møre og Romsdal station set the project was built
// around. Overridable via STATIONS.
const defaultStations = "Tingvoll=SN64510@62.90,8.16;" +
	"Brusdalen=SN60875@62.46,6.88;" +
	"Surnadal-Sylte=SN64760@63.07,8.93;" +
	"Linge=SN60650@62.47,7.23;" +
	"Vigra=SN60990@62.56,6.10"

// Config holds all settings for one harvest run, populated from environment
// variables and validated once at startup.
type Config struct {
	// Frost (primary source) access.
	FrostClientID string `envconfig:"FROST_CLIENT_ID" validate:"required"`
	FrostBaseURL  string `envconfig:"FROST_BASE_URL" default:"https://frost.met.no/observations/v0.jsonld" validate:"url"`

	// Open-Meteo (secondary snow source) access.
	OpenMeteoBaseURL string `envconfig:"OPEN_METEO_BASE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"url"`
	SnowEnabled      bool   `envconfig:"SNOW_CROSS_REFERENCE" default:"true"`

	// Station set and requested elements (canonical names).
	Stations     StationList `envconfig:"STATIONS" validate:"min=1"`
	Elements     []string    `envconfig:"ELEMENTS" default:"global_radiation,air_temperature_c,cloud_cover_percent" validate:"min=1"`
	SnowElements []string    `envconfig:"SNOW_ELEMENTS" default:"snow_depth_cm"`

	// Date range. When END_DATE is unset it defaults to five days ago (the
	// Open-Meteo archive lags real time), and START_DATE to five years before
	// the end.
	StartDate time.Time `envconfig:"START_DATE"`
	EndDate   time.Time `envconfig:"END_DATE"`

	// Retrieval tuning.
	SpanDays     int           `envconfig:"BATCH_SPAN_DAYS" default:"365" validate:"min=1"`
	SnowSpanDays int           `envconfig:"SNOW_SPAN_DAYS" default:"365" validate:"min=1"`
	MaxAttempts  int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=1"`
	Backoff      time.Duration `envconfig:"RETRY_BACKOFF" default:"5s" validate:"min=0"`
	Pacing       time.Duration `envconfig:"REQUEST_DELAY" default:"2s" validate:"min=0"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`

	// Output.
	OutputDir string `envconfig:"OUTPUT_DIR" default:"met_norway_data" validate:"required"`
	Delimiter string `envconfig:"OUTPUT_DELIMITER" default:"," validate:"len=1"`

	// Observability.
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	MetricsAddr string `envconfig:"METRICS_ADDR"` // empty disables the progress server
}

// StationList parses the STATIONS environment variable. Format, one station
// per entry separated by semicolons:
//
//	Name=SNxxxxx@lat,lon
//
// The coordinate part is optional; without it the station is harvested from
// the primary source only.
type StationList []domain.Station

// Decode implements envconfig.Decoder.
func (s *StationList) Decode(value string) error {
	var stations []domain.Station
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		station, err := parseStation(part)
		if err != nil {
			return err
		}
		stations = append(stations, station)
	}
	if len(stations) == 0 {
		return fmt.Errorf("STATIONS: no stations in %q", value)
	}
	*s = stations
	return nil
}

func parseStation(entry string) (domain.Station, error) {
	name, rest, ok := strings.Cut(entry, "=")
	if !ok || name == "" || rest == "" {
		return domain.Station{}, fmt.Errorf("STATIONS: entry %q is not Name=ID[@lat,lon]", entry)
	}

	id, coords, hasCoords := strings.Cut(rest, "@")
	if id == "" {
		return domain.Station{}, fmt.Errorf("STATIONS: entry %q has an empty station id", entry)
	}

	station := domain.Station{Name: name, ID: id}
	if !hasCoords {
		return station, nil
	}

	latStr, lonStr, ok := strings.Cut(coords, ",")
	if !ok {
		return domain.Station{}, fmt.Errorf("STATIONS: entry %q has malformed coordinates %q", entry, coords)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Station{}, fmt.Errorf("STATIONS: entry %q: bad latitude: %w", entry, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Station{}, fmt.Errorf("STATIONS: entry %q: bad longitude: %w", entry, err)
	}
	station.Geo = &domain.Geo{Lat: lat, Lon: lon}
	return station, nil
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored but not required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if len(cfg.Stations) == 0 {
		if err := cfg.Stations.Decode(defaultStations); err != nil {
			return nil, err
		}
	}

	cfg.applyDateDefaults()

	if !cfg.StartDate.Before(cfg.EndDate) {
		return nil, &domain.InvalidRangeError{Start: cfg.StartDate, End: cfg.EndDate, MaxSpanDays: cfg.SpanDays}
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyDateDefaults fills the date range relative to the current time: the
// end shifted back five days for the archive lag, the start five years
// before the end. Both are truncated to whole hours.
func (c *Config) applyDateDefaults() {
	if c.EndDate.IsZero() {
		c.EndDate = domain.Now().UTC().AddDate(0, 0, -5).Truncate(time.Hour)
	}
	if c.StartDate.IsZero() {
		c.StartDate = c.EndDate.AddDate(-5, 0, 0)
	}
	c.StartDate = c.StartDate.UTC()
	c.EndDate = c.EndDate.UTC()
}
