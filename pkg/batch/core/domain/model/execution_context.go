package model

import (
	"database/sql/driver"
	"encoding/json"
)

// ExecutionContext is a key-value store shared across a step execution and persisted as JSON.
// After a round trip through the database, numbers come back as float64.
type ExecutionContext map[string]interface{}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Value implements driver.Valuer.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	return jsonValue(map[string]interface{}(ec))
}

// Scan implements sql.Scanner.
func (ec *ExecutionContext) Scan(value interface{}) error {
	m := map[string]interface{}{}
	if _, err := scanJSON(value, &m, "ExecutionContext"); err != nil {
		return err
	}
	*ec = m
	return nil
}

func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt accepts any integer type, float64 (JSON numbers) and json.Number.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func (ec ExecutionContext) GetBool(key string) (bool, bool) {
	v, ok := ec[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (ec ExecutionContext) Remove(key string) {
	delete(ec, key)
}

// Copy returns a shallow copy.
func (ec ExecutionContext) Copy() ExecutionContext {
	cp := make(ExecutionContext, len(ec))
	for k, v := range ec {
		cp[k] = v
	}
	return cp
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
