package canvas

import (
	"encoding/json"
	"fmt"
)

const SnapshotVersion = "1"

// Snapshot is the serialized form of a canvas. Treat it as a value: Clone before handing it to
// code that may keep it.
type Snapshot struct {
	Version    string   `json:"version"`
	Background string   `json:"background,omitempty"`
	Width      float64  `json:"width,omitempty"`
	Height     float64  `json:"height,omitempty"`
	Objects    []Object `json:"objects"`
}

func (s Snapshot) Clone() Snapshot {
	c := s
	c.Objects = make([]Object, len(s.Objects))
	for i := range s.Objects {
		c.Objects[i] = *s.Objects[i].Clone()
	}
	return c
}

// Marshal encodes the snapshot for storage.
func (s Snapshot) Marshal() ([]byte, error) {
	if s.Objects == nil {
		s.Objects = []Object{}
	}
	return json.Marshal(s)
}

// ParseSnapshot decodes stored snapshot data.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	for i := range s.Objects {
		if s.Objects[i].Type == "" {
			return Snapshot{}, fmt.Errorf("invalid snapshot: object %d has no type", i)
		}
	}
	if s.Objects == nil {
		s.Objects = []Object{}
	}
	return s, nil
}
