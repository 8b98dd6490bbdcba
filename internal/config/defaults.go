package config

const (
	defaultDataDir              = "~/.local/share/sceneforge"
	defaultLogDir               = "~/.local/share/sceneforge/logs"
	defaultAPIBind              = "127.0.0.1:7643"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultOracleBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultOracleModel          = "google/gemini-3-flash-preview"
	defaultOracleTitle          = "Sceneforge Decision Oracle"
	defaultOracleTimeoutSeconds = 60
	defaultMaxRevisionRetries   = 3
	defaultPendingLeaseSeconds  = 300
	defaultCrossProjectPolicy   = "fail"
	defaultEvalWorkers          = 4
	defaultEvalCacheSize        = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Oracle: Oracle{
			BaseURL:        defaultOracleBaseURL,
			Model:          defaultOracleModel,
			Title:          defaultOracleTitle,
			TimeoutSeconds: defaultOracleTimeoutSeconds,
		},
		Orchestrator: Orchestrator{
			MaxRevisionRetries:        defaultMaxRevisionRetries,
			PendingLeaseSeconds:       defaultPendingLeaseSeconds,
			DefaultCrossProjectPolicy: defaultCrossProjectPolicy,
		},
		Eval: Eval{
			Workers:   defaultEvalWorkers,
			CacheSize: defaultEvalCacheSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
