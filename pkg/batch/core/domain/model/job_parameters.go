package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

const maskedValue = "********"

// JobParameters identify a JobInstance: two launches with equal parameters share an instance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Value implements driver.Valuer.
func (jp JobParameters) Value() (driver.Value, error) {
	if jp.Params == nil {
		return "{}", nil
	}
	return jsonValue(jp.Params)
}

// Scan implements sql.Scanner.
func (jp *JobParameters) Scan(value interface{}) error {
	m := map[string]interface{}{}
	if _, err := scanJSON(value, &m, "JobParameters"); err != nil {
		return err
	}
	jp.Params = m
	return nil
}

func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

func (jp JobParameters) Get(key string) interface{} {
	if jp.Params == nil {
		return nil
	}
	return jp.Params[key]
}

func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Get(key).(string)
	return s, ok
}

func (jp JobParameters) GetInt(key string) (int, bool) {
	v := jp.Get(key)
	if v == nil {
		return 0, false
	}
	return toInt(v)
}

// Copy returns a shallow copy.
func (jp JobParameters) Copy() JobParameters {
	cp := NewJobParameters()
	for k, v := range jp.Params {
		cp.Params[k] = v
	}
	return cp
}

// Equal compares two parameter sets, treating numbers of different Go types as equal
// when their values match (parameters read back from JSON are float64).
func (jp JobParameters) Equal(other JobParameters) bool {
	return len(jp.Params) == len(other.Params) && jp.Contains(other)
}

// Contains reports whether every key of partial is present in jp with an equal value.
func (jp JobParameters) Contains(partial JobParameters) bool {
	for key, want := range partial.Params {
		got, ok := jp.Params[key]
		if !ok || !looselyEqual(got, want) {
			return false
		}
	}
	return true
}

func looselyEqual(a, b interface{}) bool {
	af, aNum := toFloat64(a)
	bf, bNum := toFloat64(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Hash returns the sha256 of the canonical (key-sorted) JSON form of the parameters.
func (jp JobParameters) Hash() (string, error) {
	canonical, err := canonicalJSON(jp.Params)
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "failed to marshal JobParameters to canonical JSON", err, false, false)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(val interface{}) ([]byte, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return json.Marshal(val)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := canonicalJSON(m[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(keyBytes)
		sb.WriteString(":")
		sb.Write(valBytes)
	}
	sb.WriteString("}")
	return []byte(sb.String()), nil
}

// String renders the parameters as JSON with the configured sensitive keys masked.
func (jp JobParameters) String() string {
	masked := make(map[string]interface{}, len(jp.Params))
	for k, v := range jp.Params {
		masked[k] = v
	}
	for _, key := range config.GetMaskedParameterKeys() {
		if _, ok := masked[key]; ok {
			masked[key] = maskedValue
		}
	}
	data, err := json.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("{[ERROR: failed to marshal masked parameters: %v]}", err)
	}
	return string(data)
}
