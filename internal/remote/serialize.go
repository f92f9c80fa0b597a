package remote

import (
	"encoding/json"
	"time"
)

// Timestamp serializes as ISO-8601 without fractional seconds. Any
// time.Time field sent to the server should be wrapped in Timestamp
// rather than marshaled directly (the stdlib default includes fractional
// seconds and a numeric offset that the server does not expect).
type Timestamp time.Time

const isoNoFractional = "2006-01-02T15:04:05Z07:00"

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(isoNoFractional))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(isoNoFractional, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// entry is one [tag, data] pair in a per-plugin batch. The batch's JSON
// value for a plugin is always a list of entries, even when there is
// exactly one, rather than a bare [tag, data] tuple. A bare-tuple value
// couldn't represent two entries for the same plugin in one tick (e.g. a
// DIFF and an EVENTS both firing), since a JSON object key can't repeat;
// nesting entries in a list per plugin sidesteps that.
type entry struct {
	Tag  string
	Data interface{}
}

// MarshalJSON implements json.Marshaler, rendering as ["TAG", data].
func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.Tag, e.Data})
}
