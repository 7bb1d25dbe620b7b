package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Trace accumulates the observable steps a caller records with Record,
// so two runs with the same seed can be compared by fingerprint
// (spec.md §8 "Simulator determinism"). The Simulator does not record
// into a Trace itself.
type Trace struct {
	events []string
}

// Record appends one observable step (e.g. "sleep_wake seq=3 t=120us",
// "rng_draw=42") to the trace.
func (t *Trace) Record(event string) {
	t.events = append(t.events, event)
}

// Fingerprint hashes the accumulated trace the same way the teacher's
// snapshot service hashes captured state: marshal to JSON, SHA-256,
// hex-encode.
func (t *Trace) Fingerprint() (string, error) {
	data, err := json.Marshal(t.events)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
