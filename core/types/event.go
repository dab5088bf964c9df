package types

// Event is a typed record emitted by the lottery engine during state
// transitions. Attributes hold the canonical string rendering of the payload.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
