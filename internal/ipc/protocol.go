// Package ipc carries check-in session commands over a unix socket: one
// JSON request line per connection, one JSON response back.
package ipc

// Request is one command sent to the running session owner.
type Request struct {
	Command string `json:"command"`
}

// Response reports command outcome plus a session state snapshot. Question
// and Total describe check-in progress while a session is active.
type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Question int    `json:"question,omitempty"`
	Total    int    `json:"total,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
