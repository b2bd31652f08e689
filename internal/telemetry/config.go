package telemetry

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	// Enabled indicates whether tracing is enabled. When false, Init
	// installs a no-op tracer and every span becomes a zero-cost stub.
	Enabled bool

	// ServiceName is reported to the trace backend as the service.name
	// resource attribute.
	ServiceName string

	// ServiceVersion is reported as the service.version resource
	// attribute.
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS on the gRPC connection to Endpoint.
	Insecure bool

	// SampleRate is the trace sampling rate, from 0.0 (never) to 1.0
	// (always).
	SampleRate float64
}

// DefaultConfig returns a disabled configuration with sane field values
// for when tracing is turned on.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "backupd",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// ProfilingConfig holds Pyroscope continuous-profiling configuration.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ServerAddress  string
}
