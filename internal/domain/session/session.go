package session

// State enum for the session lifecycle.
type State string

const (
	StateLoaded    State = "loaded"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateError     State = "error"
)

// Session tracks one uploaded log bundle through upload, analysis and
// results browsing. Mutable fields are owned by the store; callers get
// copies.
type Session struct {
	ID         string
	InputPath  string
	WorkDir    string
	ReportsDir string
	State      State
	DeviceID   string
	Mode       string
	Stdout     string
	Stderr     string
}
