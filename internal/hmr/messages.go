// Package hmr turns file changes into hot update messages for browsers.
package hmr

// Message types sent over the HMR transport.
const (
	TypeConnected = "connected"
	TypeUpdate    = "update"
	TypeJSUpdate  = "js-update"
)

// UpdateMessage is broadcast once per changed file.
type UpdateMessage struct {
	Type    string          `json:"type"`
	Updates []UpdatePayload `json:"updates"`
}

// UpdatePayload describes one module to re-fetch. Path and AcceptedPath are
// server-relative URLs; the runtime re-imports Path with `?t=<Timestamp>`.
type UpdatePayload struct {
	Type         string `json:"type"`
	Timestamp    int64  `json:"timestamp"`
	Path         string `json:"path"`
	AcceptedPath string `json:"acceptedPath"`
}

// NewJSUpdate builds the update message for the module at url.
func NewJSUpdate(url string, timestamp int64) UpdateMessage {
	return UpdateMessage{
		Type: TypeUpdate,
		Updates: []UpdatePayload{{
			Type:         TypeJSUpdate,
			Timestamp:    timestamp,
			Path:         url,
			AcceptedPath: url,
		}},
	}
}
