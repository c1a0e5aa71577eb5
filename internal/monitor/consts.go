package monitor

import "time"

const (
	// DurationCheckInterval is how often the refresher re-probes the list.
	DurationCheckInterval = time.Minute * 5
	// DurationGracePeriod exempts freshly added servers from re-probing.
	DurationGracePeriod = time.Minute * 5
	// DurationProbeTimeout bounds a single status query.
	DurationProbeTimeout = time.Second * 5
	// DurationHistoryMaxAge bounds how long probe history rows are kept.
	DurationHistoryMaxAge = time.Hour * 24 * 7
)

type RunModes string

const (
	ModeProd  RunModes = "release"
	ModeDebug RunModes = "debug"
	ModeTest  RunModes = "test"
)
