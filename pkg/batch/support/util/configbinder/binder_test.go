package configbinder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Source    string        `yaml:"source"`
	ChunkSize int           `yaml:"chunk_size"`
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	Columns   []string      `yaml:"columns"`
}

func TestBindProperties(t *testing.T) {
	var s sample
	err := BindProperties(map[string]interface{}{
		"source":     "raw/races.csv",
		"chunk_size": "50",
		"enabled":    "true",
		"timeout":    "2s",
		"columns":    "a,b",
	}, &s)
	require.NoError(t, err)
	assert.Equal(t, "raw/races.csv", s.Source)
	assert.Equal(t, 50, s.ChunkSize)
	assert.True(t, s.Enabled)
	assert.Equal(t, 2*time.Second, s.Timeout)
	assert.Equal(t, []string{"a", "b"}, s.Columns)
}

func TestBindPropertiesEmpty(t *testing.T) {
	s := sample{Source: "keep"}
	require.NoError(t, BindProperties(nil, &s))
	assert.Equal(t, "keep", s.Source)
}

func TestBindInvalid(t *testing.T) {
	var s sample
	err := Bind(map[string]interface{}{"chunk_size": "many"}, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configbinder.sample")
}
