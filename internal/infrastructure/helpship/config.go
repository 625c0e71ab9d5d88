package helpship

import (
	"errors"
	"time"
)

// Environment selects the Helpship deployment to talk to
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

const (
	// ProductionTokenURL is the production identity server
	ProductionTokenURL = "https://auth.helpship.ro"
	// ProductionAPIURL is the production order API
	ProductionAPIURL = "https://api.helpship.ro"
	// DevelopmentTokenURL is the development identity server
	DevelopmentTokenURL = "https://auth-dev.helpship.ro"
	// DevelopmentAPIURL is the development order API
	DevelopmentAPIURL = "https://api-dev.helpship.ro"

	// DefaultTokenRefreshBuffer is how long before expiry a cached token is replaced
	DefaultTokenRefreshBuffer = 5 * time.Minute
	// DefaultCurrency is the currency every order is booked in
	DefaultCurrency = "RON"
	// DefaultCountry is the shipping country code
	DefaultCountry = "RO"
)

// Errors for Helpship configuration
var (
	ErrConfigMissingClientID     = errors.New("helpship: client id is required")
	ErrConfigMissingClientSecret = errors.New("helpship: client secret is required")
	ErrConfigInvalidEnvironment  = errors.New("helpship: environment must be development or production")
)

// Config holds configuration for the Helpship WMS integration
type Config struct {
	// ClientID is the OAuth2 client id
	ClientID string
	// ClientSecret is the OAuth2 client secret
	ClientSecret string
	// Scope is the optional OAuth2 scope requested with the token
	Scope string
	// Environment selects the default URLs
	Environment Environment
	// TokenBaseURL overrides the identity server URL
	TokenBaseURL string
	// APIBaseURL overrides the order API URL
	APIBaseURL string
	// Currency is sent with every order
	Currency string
	// Country is the shipping country code
	Country string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// NewConfig creates a production configuration with defaults
func NewConfig(clientID, clientSecret string) *Config {
	return &Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Environment:    EnvironmentProduction,
		TokenBaseURL:   ProductionTokenURL,
		APIBaseURL:     ProductionAPIURL,
		Currency:       DefaultCurrency,
		Country:        DefaultCountry,
		TimeoutSeconds: 30,
	}
}

// NewDevelopmentConfig creates a configuration for the development environment
func NewDevelopmentConfig(clientID, clientSecret string) *Config {
	return &Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Environment:    EnvironmentDevelopment,
		TokenBaseURL:   DevelopmentTokenURL,
		APIBaseURL:     DevelopmentAPIURL,
		Currency:       DefaultCurrency,
		Country:        DefaultCountry,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	switch c.Environment {
	case "":
		c.Environment = EnvironmentProduction
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return ErrConfigInvalidEnvironment
	}
	if c.TokenBaseURL == "" {
		c.TokenBaseURL = ProductionTokenURL
		if c.Environment == EnvironmentDevelopment {
			c.TokenBaseURL = DevelopmentTokenURL
		}
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ProductionAPIURL
		if c.Environment == EnvironmentDevelopment {
			c.APIBaseURL = DevelopmentAPIURL
		}
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
