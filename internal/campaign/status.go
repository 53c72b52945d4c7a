package campaign

// State is the pipeline stage shown to the user.
type State string

const (
	StateIdle             State = "idle"
	StateResearching      State = "researching"
	StateGeneratingImages State = "generating_images"
	StateGeneratingVideo  State = "generating_video"
	StateComplete         State = "complete"
	StateError            State = "error"
)

// Status is the latest pipeline progress report.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Status reports the progress of the user's latest run.
func (c *Controller) Status(userID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[userID]; ok {
		return st
	}
	return Status{State: StateIdle}
}

func (c *Controller) setStatus(userID string, state State, msg string, err error) {
	s := Status{State: state, Message: msg}
	if err != nil {
		s.Error = err.Error()
	}
	c.mu.Lock()
	c.status[userID] = s
	c.mu.Unlock()
}
