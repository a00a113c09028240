package directory

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed.json
var seedJSON []byte

// Seed returns the bundled demo candidates.
func Seed() ([]Candidate, error) {
	var items []Candidate
	if err := json.Unmarshal(seedJSON, &items); err != nil {
		return nil, fmt.Errorf("decode seed candidates: %w", err)
	}
	for i := range items {
		items[i].Normalize()
		if err := items[i].Validate(); err != nil {
			return nil, err
		}
	}
	return items, nil
}
