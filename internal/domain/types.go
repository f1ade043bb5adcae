package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue marshals v for storage in a TEXT column.
func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// jsonScan unmarshals a TEXT/BLOB column into dst.
func jsonScan(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dst)
	}

	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return jsonValue(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	return jsonScan(value, s)
}

// FormatList is an ordered sequence of candidate formats as surfaced by the
// source resolver. Order matters: by convention the last matching entry is
// the highest quality one.
type FormatList []Format

func (l FormatList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return jsonValue(l)
}

func (l *FormatList) Scan(value interface{}) error {
	return jsonScan(value, l)
}

// Clone returns a deep copy of the list.
func (l FormatList) Clone() FormatList {
	if l == nil {
		return nil
	}
	out := make(FormatList, len(l))
	copy(out, l)
	return out
}
