package state

import (
	"encoding/json"
	"fmt"
)

// decodeLegacy reads the unversioned format written by earlier tools: a flat object
// mapping namespace to an ISO-8601 date string. Loaded entries become timestamp
// baselines; the next save rewrites the file in the versioned format.
func decodeLegacy(raw map[string]json.RawMessage) (*RecordSet, error) {
	records := NewRecordSet()
	for ns, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, fmt.Errorf("legacy entry %q is not a string: %w", ns, err)
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("legacy entry %q: %w", ns, err)
		}
		records.Timestamps[ns] = t
	}
	return records, nil
}
