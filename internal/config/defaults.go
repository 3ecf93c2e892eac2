package config

const (
	defaultDataDir        = "~/.local/share/storyreel"
	defaultLogDir         = "~/.local/share/storyreel/logs"
	defaultSnapshotDir    = "~/.local/share/storyreel/projects"
	defaultAPIBind        = "127.0.0.1:7910"
	defaultOutputWidth    = 1080
	defaultOutputHeight   = 1920
	defaultFrameRate      = 30
	defaultCodec          = "h264"
	defaultTrailingPadMS  = 500
	defaultMSPerChar      = 300
	defaultMinEstimateMS  = 2000
	defaultSceneMS        = 3000
	defaultProbeTimeout   = 5
	defaultProbeFanout    = 4
	defaultRenderTimeout  = 30
	defaultMaxAttempts    = 3
	defaultRetryBackoff   = 30
	defaultMaxBackoff     = 600
	defaultPollInterval   = 5
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			SnapshotDir: defaultSnapshotDir,
			APIBind:     defaultAPIBind,
		},
		Output: Output{
			Width:     defaultOutputWidth,
			Height:    defaultOutputHeight,
			FrameRate: defaultFrameRate,
			Codec:     defaultCodec,
		},
		Timing: Timing{
			TrailingPadMS:  defaultTrailingPadMS,
			MSPerChar:      defaultMSPerChar,
			MinEstimateMS:  defaultMinEstimateMS,
			DefaultSceneMS: defaultSceneMS,
		},
		Preflight: Preflight{
			ProbeTimeoutSeconds: defaultProbeTimeout,
			ProbeFanout:         defaultProbeFanout,
		},
		Renderer: Renderer{
			TimeoutSeconds: defaultRenderTimeout,
		},
		Jobs: Jobs{
			MaxAttempts:         defaultMaxAttempts,
			RetryBackoffSeconds: defaultRetryBackoff,
			MaxBackoffSeconds:   defaultMaxBackoff,
			PollIntervalSeconds: defaultPollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
