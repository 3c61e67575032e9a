package rules

import "github.com/brensch/pitchdf/game"

// Sink receives one (state, pitch) pair per pitch.
type Sink interface {
	Append(state game.Snapshot, pitch Pitch) error
	// Finalize persists everything appended so far.
	Finalize() error
}

// PitchRecord is the pre-pitch state snapshot paired with the pitch.
type PitchRecord struct {
	State game.Snapshot
	Pitch Pitch
}

// MemorySink buffers records in memory. The batch driver reconciles each game
// into its own MemorySink and only forwards the records once the whole game
// has reconciled.
type MemorySink struct {
	Records   []PitchRecord
	Finalized bool
}

func (m *MemorySink) Append(state game.Snapshot, pitch Pitch) error {
	m.Records = append(m.Records, PitchRecord{State: state, Pitch: pitch})
	return nil
}

func (m *MemorySink) Finalize() error {
	m.Finalized = true
	return nil
}

// Reset drops buffered records.
func (m *MemorySink) Reset() {
	m.Records = m.Records[:0]
	m.Finalized = false
}

// CopyTo appends all buffered records to dst.
func (m *MemorySink) CopyTo(dst Sink) error {
	for _, rec := range m.Records {
		if err := dst.Append(rec.State, rec.Pitch); err != nil {
			return err
		}
	}
	return nil
}
