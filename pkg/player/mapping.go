package player

import (
	"encoding/json"
	"fmt"
)

// ToMap converts the player to the generic mapping used at the
// persistence boundary.
func (p *Player) ToMap() (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player map: %w", err)
	}
	return m, nil
}

// FromMap is the inverse of ToMap.
func FromMap(m map[string]any) (*Player, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player map: %w", err)
	}
	var p Player
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}
	return &p, nil
}
