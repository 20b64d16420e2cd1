package pipeline

// State is the service lifecycle position. It only moves forward.
type State int32

const (
	Uninitialized State = iota
	Loading
	RegionReady
	Warming
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case RegionReady:
		return "region_ready"
	case Warming:
		return "warming"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// LookupStatus distinguishes a computed entry from the two kinds of miss.
type LookupStatus int

const (
	// StatusFound carries a computed set, which may hold no lines.
	StatusFound LookupStatus = iota
	// StatusNotReady means the key is, or may still be, scheduled for the
	// warm pass.
	StatusNotReady
	// StatusNotFound means the key will never be computed for this data.
	StatusNotFound
)

func (s LookupStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotReady:
		return "not_ready"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
