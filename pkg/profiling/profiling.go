package profiling

import (
	"log/slog"
	"os"

	"github.com/grafana/pyroscope-go"

	"tripreport/pkg/otel"
)

// InitProfiling starts continuous profiling to Pyroscope when
// PYROSCOPE_PROFILING_ENABLED is set.
func InitProfiling() (func(), error) {
	if !otel.IsTrue(os.Getenv("PYROSCOPE_PROFILING_ENABLED")) {
		slog.Debug("Pyroscope profiling is disabled")
		return func() {}, nil
	}

	config := profilerConfig()

	profiler, err := pyroscope.Start(config)
	if err != nil {
		slog.Warn("Failed to start Pyroscope profiler", "error", err)
		return func() {}, nil
	}

	slog.Debug("Pyroscope profiling started", "server", config.ServerAddress, "application", config.ApplicationName)

	return func() {
		if err := profiler.Stop(); err != nil {
			slog.Error("Error stopping Pyroscope profiler", "error", err)
		} else {
			slog.Debug("Pyroscope profiler stopped")
		}
	}, nil
}

func profilerConfig() pyroscope.Config {
	config := pyroscope.Config{
		ApplicationName: getEnv("PYROSCOPE_APPLICATION_NAME", otel.ServiceName),
		ServerAddress:   getEnv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040"),
		Logger:          pyroscope.StandardLogger,
		Tags: map[string]string{
			"service": otel.ServiceName,
			"version": otel.Version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	}

	user := os.Getenv("PYROSCOPE_BASIC_AUTH_USER")
	password := os.Getenv("PYROSCOPE_BASIC_AUTH_PASSWORD")
	if user != "" && password != "" {
		config.BasicAuthUser = user
		config.BasicAuthPassword = password
	}
	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
