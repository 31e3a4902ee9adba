package config

import "time"

const (
	defaultBaseURL  = "http://localhost:8080"
	defaultLogLevel = "info"
)

var defaultAPI = API{
	BaseURL: defaultBaseURL,
	Timeout: 15 * time.Second,
}

var defaultStore = Store{
	Path:   ".liyt/credentials.store",
	Secret: "dev-only-store-secret",
}

var defaultMockAPI = MockAPI{
	Port:       8080,
	DBPath:     ".liyt/mockapi.db",
	JWTSecret:  "dev-only-secret",
	AccessTTL:  15 * time.Minute,
	RefreshTTL: 30 * 24 * time.Hour,
}

// DefaultAPI returns the default gateway client settings.
func DefaultAPI() API {
	return defaultAPI
}

// DefaultStore returns the default credential store settings.
func DefaultStore() Store {
	return defaultStore
}

// DefaultLogLevel returns the default log level.
func DefaultLogLevel() string {
	return defaultLogLevel
}

// DefaultMockAPI returns the default development backend settings.
func DefaultMockAPI() MockAPI {
	return defaultMockAPI
}
