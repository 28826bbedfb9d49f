// Package types holds the custody API records returned by the listing
// endpoints: vault accounts and transactions.
package types

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Epoch is a point in time carried on the wire as milliseconds since the
// Unix epoch.
type Epoch struct {
	time.Time
}

// EpochFromMillis converts a millisecond timestamp into an Epoch in UTC.
func EpochFromMillis(ms int64) Epoch {
	return Epoch{time.UnixMilli(ms).UTC()}
}

// Millis returns the timestamp in milliseconds since the Unix epoch.
func (e Epoch) Millis() int64 {
	return e.UnixMilli()
}

// MarshalJSON encodes the timestamp as a JSON number of milliseconds, or
// null for the zero time.
func (e Epoch) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(e.Millis(), 10)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted number of milliseconds.
func (e *Epoch) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		e.Time = time.Time{}
		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		// Some endpoints report fractional milliseconds.
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("parse epoch %q: %w", data, err)
		}
		ms = int64(f)
	}

	e.Time = time.UnixMilli(ms).UTC()
	return nil
}
