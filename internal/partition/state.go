package partition

// State is the load state of a month partition.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
	// Failed means loading failed and a retry is available.
	Failed
)

var stateNames = []string{"unloaded", "loading", "ready", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state as its lower-case name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of one partition.
type Status struct {
	Month          string `json:"month"`
	State          State  `json:"state"`
	Active         bool   `json:"active"`
	Version        int64  `json:"version"`
	ItemCount      int    `json:"itemCount"`
	LoadError      string `json:"loadError,omitempty"`
	LastWriteError string `json:"lastWriteError,omitempty"`
}
