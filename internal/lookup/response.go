package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type searchRequest struct {
	CityCode           string `json:"CityCode"`
	IsDetailedResponse bool   `json:"IsDetailedResponse"`
}

type searchResponse struct {
	Status responseStatus `json:"Status"`
	Hotels []hotel        `json:"Hotels"`
}

type responseStatus struct {
	Code        int    `json:"Code"`
	Description string `json:"Description"`
}

type hotel struct {
	HotelCode hotelCode       `json:"HotelCode"`
	CityName  string          `json:"CityName"`
	Latitude  json.RawMessage `json:"Latitude"`
	Longitude json.RawMessage `json:"Longitude"`
}

// hotelCode accepts both JSON strings and numbers.
type hotelCode string

func (c *hotelCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("hotel code: %w", err)
		}
		*c = hotelCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hotel code: %w", err)
	}
	*c = hotelCode(n.String())
	return nil
}

// coordinate parses a string-encoded coordinate. Absent fields, non-string
// values and malformed numbers all report ok=false.
func coordinate(raw json.RawMessage) (value float64, ok bool, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, fmt.Errorf("coordinate is not a string: %s", raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse coordinate %q: %w", s, err)
	}
	return v, true, nil
}
