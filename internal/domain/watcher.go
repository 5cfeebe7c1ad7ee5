package domain

// WatcherState is the durable, per-watcher pacing and progress record. It is
// the only piece of ChainWatcher state that survives a restart. RiskState is
// not persisted or rebuilt: cmd/worker starts from a zero RiskState.
type WatcherState struct {
	Key                string
	LastProcessedBlock int64
	ErrorStreak        int
	HealthyStreak      int
	CurrentPollSeconds int
}
