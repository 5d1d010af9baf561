package config

import "time"

// Config carries every tunable the simulator components need. main.go fills
// it from flags and environment; tests build it from Default() and override
// what they exercise.
type Config struct {
	ListenAddress string
	Debug         bool

	// File layout for the provider and polar loader.
	DataDir   string
	PolarFile string

	// Sliding forecast window, in hours around the current sim hour.
	WindowBack  int
	WindowAhead int

	// Loader behaviour.
	LoaderAttempts   int
	LoaderRetryDelay time.Duration
	LoaderThrottle   time.Duration
	LoaderWorkers    int

	// Janitor cadence for deferred-eviction sweeps and progress logging.
	JanitorInterval time.Duration

	// Physics.
	CloseHauledDeg  float64
	InIronsSpeedKts float64
	RoundingRadiusM float64

	// Fallbacks applied when a field query returns no data.
	FallbackWindDirDeg   float64
	FallbackWindSpeedKts float64

	// Router.
	TackCommitmentSec float64

	// Scenario start.
	StartLat     float64
	StartLon     float64
	StartHeading float64

	// XMPP notifications; disabled when Host is empty.
	XmppHost     string
	XmppUser     string
	XmppPassword string
	XmppReclist  []string
}

// Default returns the San Francisco Bay scenario defaults.
func Default() Config {
	return Config{
		ListenAddress: ":8085",

		DataDir:   "data",
		PolarFile: "data/polar.json",

		WindowBack:  1,
		WindowAhead: 6,

		LoaderAttempts:   3,
		LoaderRetryDelay: 5 * time.Second,
		LoaderThrottle:   200 * time.Millisecond,
		LoaderWorkers:    2,

		JanitorInterval: 30 * time.Second,

		CloseHauledDeg:  30,
		InIronsSpeedKts: 0.5,
		RoundingRadiusM: 40,

		FallbackWindDirDeg:   315,
		FallbackWindSpeedKts: 10,

		TackCommitmentSec: 30,

		StartLat:     37.8199,
		StartLon:     -122.4783,
		StartHeading: 90,
	}
}
