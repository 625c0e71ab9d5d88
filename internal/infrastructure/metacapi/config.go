package metacapi

import (
	"errors"
	"time"
)

const (
	// DefaultGraphBaseURL is the Graph API host
	DefaultGraphBaseURL = "https://graph.facebook.com"
	// DefaultAPIVersion is the Graph API version used for events
	DefaultAPIVersion = "v21.0"
	// DefaultRegion is the region used to parse national phone numbers
	DefaultRegion = "RO"
	// DefaultCurrency is the purchase currency
	DefaultCurrency = "RON"
	// ActionSourceWebsite marks events that happened on a website
	ActionSourceWebsite = "website"
)

// ErrConfigInvalidRegion is returned for a region that is not a two letter code
var ErrConfigInvalidRegion = errors.New("metacapi: default region must be a two letter code")

// Config holds configuration for the conversions API client
type Config struct {
	// GraphBaseURL is the Graph API host
	GraphBaseURL string
	// APIVersion is the Graph API version path segment
	APIVersion string
	// DefaultRegion is the ISO region used when a phone has no country prefix
	DefaultRegion string
	// Currency is the purchase currency
	Currency string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// NewConfig creates a configuration with defaults
func NewConfig() *Config {
	return &Config{
		GraphBaseURL:   DefaultGraphBaseURL,
		APIVersion:     DefaultAPIVersion,
		DefaultRegion:  DefaultRegion,
		Currency:       DefaultCurrency,
		TimeoutSeconds: 10,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.GraphBaseURL == "" {
		c.GraphBaseURL = DefaultGraphBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = DefaultRegion
	}
	if len(c.DefaultRegion) != 2 {
		return ErrConfigInvalidRegion
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
