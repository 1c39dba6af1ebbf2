package a2c

// SyncState is the synchronisation state of a worker
type SyncState int

const (
	// Collecting workers are stepping their environment
	Collecting SyncState = iota

	// AwaitingRelease workers have sent a segment and are blocked
	// until the coordinator releases them
	AwaitingRelease

	// Finished workers have ended their episode. A Finished worker only
	// becomes Failed if its channel closes before it sends its summary.
	Finished

	// Failed workers closed their channel unexpectedly and no longer
	// contribute to rounds
	Failed
)

func (s SyncState) String() string {
	switch s {
	case Collecting:
		return "Collecting"
	case AwaitingRelease:
		return "AwaitingRelease"
	case Finished:
		return "Finished"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}
