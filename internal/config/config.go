package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Environment variable prefix used by the env loader

var DefaultNamePrefix = "TINYPROVIDER_"

// Protocol parameter names

const (
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamGrantType    = "grant_type"
	ParamResponseType = "response_type"
	ParamRedirectURI  = "redirect_uri"
	ParamScope        = "scope"
	ParamState        = "state"
	ParamCode         = "code"
	ParamRefreshToken = "refresh_token"
	ParamOAuthToken   = "oauth_token"
	ParamConsent      = "consent_ticket"
	ParamDecision     = "decision"
)

// Grant and response types understood by the flows

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	ResponseTypeCode           = "code"
	ResponseTypeToken          = "token"
)

// Owner types

const (
	OwnerTypeUser     = "user"
	OwnerTypeProvider = "provider"
)

// Main app config

type Config struct {
	AppURL       string                  `description:"The base URL where the provider is hosted." yaml:"appUrl"`
	DatabasePath string                  `description:"The path to the database file." yaml:"databasePath"`
	Server       ServerConfig            `description:"Server configuration." yaml:"server"`
	Provider     ProviderConfig          `description:"Provider configuration." yaml:"provider"`
	OAuth        OAuthConfig             `description:"OAuth flow configuration." yaml:"oauth"`
	Clients      map[string]ClientConfig `description:"Statically configured clients." yaml:"clients"`
	Log          LogConfig               `description:"Logging configuration." yaml:"log"`
	Metrics      MetricsConfig           `description:"Metrics configuration." yaml:"metrics"`
	Experimental ExperimentalConfig      `description:"Experimental features, use with caution." yaml:"experimental"`
}

type ServerConfig struct {
	Port           int      `description:"The port on which the server listens." yaml:"port"`
	Address        string   `description:"The address on which the server listens." yaml:"address"`
	SocketPath     string   `description:"The path to the Unix socket." yaml:"socketPath"`
	TrustedProxies []string `description:"Comma-separated list of trusted proxy addresses or CIDR ranges, the only peers whose forwarded and owner headers are honored." yaml:"trustedProxies"`
}

type ProviderConfig struct {
	Name       string `description:"The name of the provider." yaml:"name"`
	EnforceSSL bool   `description:"Reject requests that do not arrive over HTTPS." yaml:"enforceSsl"`
}

type OAuthConfig struct {
	TokenExpiry      int    `description:"Lifetime of issued grants in seconds, 0 disables expiry." yaml:"tokenExpiry"`
	OwnerHeader      string `description:"Trusted header carrying the authenticated resource owner." yaml:"ownerHeader"`
	ClientLockout    int    `description:"Client lockout duration in seconds after too many failed authentications." yaml:"clientLockout"`
	ClientMaxRetries int    `description:"Maximum failed client authentications before lockout." yaml:"clientMaxRetries"`
	CleanupInterval  int    `description:"Interval in seconds between expired grant cleanups." yaml:"cleanupInterval"`
	ConsentExpiry    int    `description:"Seconds a pending consent request stays valid." yaml:"consentExpiry"`
}

type ClientConfig struct {
	ClientID         string   `description:"The client ID." yaml:"clientId"`
	ClientSecret     string   `description:"The client secret." yaml:"clientSecret"`
	ClientSecretFile string   `description:"Path to the file containing the client secret." yaml:"clientSecretFile"`
	RedirectURIs     []string `description:"List of allowed redirect URIs." yaml:"redirectUris"`
	Name             string   `description:"Client name." yaml:"name"`
}

type LogConfig struct {
	Level   string     `description:"Log level (trace, debug, info, warn, error)." yaml:"level"`
	Json    bool       `description:"Enable JSON formatted logs." yaml:"json"`
	Streams LogStreams `description:"Configuration for specific log streams." yaml:"streams"`
}

type LogStreams struct {
	HTTP  LogStreamConfig `description:"HTTP request logging." yaml:"http"`
	App   LogStreamConfig `description:"Application logging." yaml:"app"`
	Audit LogStreamConfig `description:"Audit logging." yaml:"audit"`
}

type LogStreamConfig struct {
	Enabled bool   `description:"Enable this log stream." yaml:"enabled"`
	Level   string `description:"Log level for this stream. Use global if empty." yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `description:"Expose Prometheus metrics." yaml:"enabled"`
	Path    string `description:"Path of the metrics endpoint." yaml:"path"`
}

type ExperimentalConfig struct {
	ConfigFile string `description:"Path to config file." yaml:"-"`
}

// NewDefaultConfiguration returns the configuration used before any loader runs.
func NewDefaultConfiguration() *Config {
	return &Config{
		DatabasePath: "./tinyprovider.db",
		Server: ServerConfig{
			Port:    3000,
			Address: "0.0.0.0",
		},
		Provider: ProviderConfig{
			Name:       "Tinyprovider",
			EnforceSSL: false,
		},
		OAuth: OAuthConfig{
			TokenExpiry:      3600,
			OwnerHeader:      "Remote-User",
			ClientLockout:    300,
			ClientMaxRetries: 5,
			CleanupInterval:  1800,
			ConsentExpiry:    300,
		},
		Log: LogConfig{
			Level: "info",
			Json:  false,
			Streams: LogStreams{
				HTTP:  LogStreamConfig{Enabled: true},
				App:   LogStreamConfig{Enabled: true},
				Audit: LogStreamConfig{Enabled: true},
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Experimental: ExperimentalConfig{
			ConfigFile: "",
		},
	}
}

// Resource owner context set by the context middleware

type OwnerContext struct {
	Username        string
	IsAuthenticated bool
}
