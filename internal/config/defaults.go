package config

const (
	defaultDataDir            = "~/.local/share/loom/data"
	defaultArtifactDir        = "~/.local/share/loom/artifacts"
	defaultLogDir             = "~/.local/share/loom/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultControlQueue       = "campaign-control"
	defaultStageQueue         = "campaign-stages"
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultLeaseSeconds       = 120
	defaultMaxDeliveries      = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Queues: Queues{
			Control: defaultControlQueue,
			Stages:  defaultStageQueue,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			LeaseSeconds:       defaultLeaseSeconds,
			MaxDeliveries:      defaultMaxDeliveries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
