package config

const (
	defaultDatabasePath     = "~/.local/share/boldrank/boldrank.db"
	defaultLogDir           = "~/.local/share/boldrank/logs"
	defaultLookupURL        = "https://caos.boldsystems.org:443/api/images"
	defaultObjectBaseURL    = "https://caos.boldsystems.org:443/api/objects/"
	defaultUserAgent        = "boldrank/dev"
	defaultBatchSize        = 200
	defaultMaxInFlight      = 300
	defaultMaxRetries       = 3
	defaultRetryDelayMillis = 500
	defaultRequestTimeout   = 60
	defaultCriteriaWorkers  = 4
	defaultPrecedence       = PrecedenceLatest
	defaultChunkSize        = 10000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Database: defaultDatabasePath,
			LogDir:   defaultLogDir,
		},
		Images: Images{
			LookupURL:             defaultLookupURL,
			ObjectBaseURL:         defaultObjectBaseURL,
			UserAgent:             defaultUserAgent,
			BatchSize:             defaultBatchSize,
			MaxInFlight:           defaultMaxInFlight,
			MaxRetries:            defaultMaxRetries,
			RetryDelayMillis:      defaultRetryDelayMillis,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Criteria: Criteria{
			Workers: defaultCriteriaWorkers,
		},
		Ranking: Ranking{
			Precedence: defaultPrecedence,
			ChunkSize:  defaultChunkSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
