package types

// StatusEnvelope is the body of every action response. Errors holds either a
// message or a field->problems map; Code is the machine readable error code.
type StatusEnvelope struct {
	Status bool   `json:"Status"`
	Errors any    `json:"Errors,omitempty"`
	Code   string `json:"Code,omitempty"`
}
