package config

const (
	defaultOutputDir         = "~/tractus/subjects"
	defaultLogDir            = "~/tractus/logs"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultBetFraction       = 0.5
	defaultFastClasses       = 3
	defaultFlirtDOF          = 12
	defaultFlirtCost         = "corratio"
	defaultFnirtConfig       = "T1_2_MNI152_2mm"
	defaultTractSamples      = 5000
	defaultTractSteps        = 2000
	defaultTractStepLength   = 0.5
	defaultTractCurvature    = 0.2
	defaultNormalizeMode     = "waytotal"
	defaultThresholdProp     = 0.0
	defaultRegTimeoutSeconds = 3600
	defaultTractTimeout      = 86400
	defaultQueuePollSeconds  = 10
	defaultHeartbeatSeconds  = 15
	defaultHeartbeatTimeout  = 120
	defaultMinFreeGiB        = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			RegistrationTimeout: defaultRegTimeoutSeconds,
			TractTimeout:        defaultTractTimeout,
		},
		Preproc: Preproc{
			Crop:        true,
			Bet:         true,
			Fast:        true,
			Flirt:       true,
			Fnirt:       true,
			BBox:        true,
			Snap:        false,
			BetFraction: defaultBetFraction,
			FastClasses: defaultFastClasses,
			FlirtDOF:    defaultFlirtDOF,
			FlirtCost:   defaultFlirtCost,
			FnirtConfig: defaultFnirtConfig,
		},
		Tract: Tract{
			Samples:    defaultTractSamples,
			Steps:      defaultTractSteps,
			StepLength: defaultTractStepLength,
			Curvature:  defaultTractCurvature,
			Loopcheck:  true,
			Network:    true,
		},
		Connectome: Connectome{
			Normalize:           defaultNormalizeMode,
			ThresholdProportion: defaultThresholdProp,
			ExportCSV:           true,
			ExportNpy:           true,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			Format:        defaultLogFormat,
			RetentionDays: defaultLogRetentionDays,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollSeconds,
			HeartbeatInterval: defaultHeartbeatSeconds,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			MinFreeGiB:        defaultMinFreeGiB,
		},
	}
}
