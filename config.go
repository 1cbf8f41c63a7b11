package tollgate

import "time"

// Config holds the configuration for a Gateway instance. It is built once at
// startup and passed by injection — pipeline code never reads ambient state.
type Config struct {
	// Network is the settlement network advertised in payment challenges.
	Network string

	// UpstreamTimeout bounds each forwarded upstream call.
	UpstreamTimeout time.Duration

	// FacilitatorTimeout bounds each facilitator verify/settle call.
	FacilitatorTimeout time.Duration

	// PaymentWindowSeconds is the payment validity window advertised in
	// challenges.
	PaymentWindowSeconds int

	// ProofTTL bounds how long used payment proof digests are retained.
	ProofTTL time.Duration

	// UsageBufferSize is the capacity of the async call-metering queue.
	UsageBufferSize int

	// UsageWorkers is the number of call-metering persistence goroutines.
	UsageWorkers int

	// ShutdownTimeout is the maximum time to wait for queued call records
	// on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Network:              "base-sepolia",
		UpstreamTimeout:      30 * time.Second,
		FacilitatorTimeout:   30 * time.Second,
		PaymentWindowSeconds: 60,
		ProofTTL:             24 * time.Hour,
		UsageBufferSize:      1024,
		UsageWorkers:         2,
		ShutdownTimeout:      10 * time.Second,
	}
}
