package telemetry

import "github.com/grafana/pyroscope-go"

// ProfilingConfig controls optional continuous profiling. Disabled by
// default; a caller turns it on explicitly when they want CPU/heap
// profiles shipped to a Pyroscope server.
type ProfilingConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
}

// StartProfiling begins continuous profiling per cfg, or returns a no-op
// closer if profiling is disabled.
func StartProfiling(cfg ProfilingConfig) (Closer, error) {
	if !cfg.Enabled {
		return noopCloser{}, nil
	}

	appName := cfg.ApplicationName
	if appName == "" {
		appName = "fdfs-client"
	}

	return pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

// Closer is satisfied by pyroscope's profiler handle (its Stop method) and by
// the no-op closer returned when profiling is disabled.
type Closer interface {
	Stop() error
}

type noopCloser struct{}

func (noopCloser) Stop() error { return nil }
