package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSON column value (string or []byte) into dest.
// It returns false when the column is NULL or empty.
func scanJSON(value interface{}, dest interface{}, typeName string) (bool, error) {
	if value == nil {
		return false, nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return false, fmt.Errorf("unsupported Scan type for %s: %T", typeName, value)
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s JSON: %w", typeName, err)
	}
	return true, nil
}

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// FailureList holds the failure messages of an execution.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	return jsonValue([]string(fl))
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	var list []string
	ok, err := scanJSON(value, &list, "FailureList")
	if err != nil {
		return err
	}
	if !ok || list == nil {
		list = []string{}
	}
	*fl = list
	return nil
}
