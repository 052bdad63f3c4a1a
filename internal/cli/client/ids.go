package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemID identifies a remote object. Servers may send it as a JSON number
// (integer primary keys) or a string (ULIDs); both decode to the same text form.
type ItemID string

func (id ItemID) String() string {
	return string(id)
}

// UnmarshalJSON accepts numbers and strings
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON always emits a string
func (id ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}
