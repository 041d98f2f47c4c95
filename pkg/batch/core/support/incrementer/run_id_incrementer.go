// Package incrementer provides JobParametersIncrementers that make every launch a new JobInstance.
package incrementer

import (
	"fmt"
	"strconv"
	"time"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter key used by RunIDIncrementer when none is given.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets the named parameter to 1, or increments it when present.
type RunIDIncrementer struct {
	name string
}

func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{
		name: name,
	}
}

// GetNext returns a copy of params with the run id advanced.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	nextParams := params.Copy()

	currentRunID, ok := params.GetInt(i.name)
	if !ok {
		nextParams.Put(i.name, 1)
		logger.Debugf("JobParametersIncrementer '%s': '%s' not found, setting to 1.", i.name, i.name)
	} else {
		nextRunID := currentRunID + 1
		nextParams.Put(i.name, nextRunID)
		logger.Debugf("JobParametersIncrementer '%s': Incrementing '%s' from %d to %d.", i.name, i.name, currentRunID, nextRunID)
	}
	return nextParams
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

// TimestampIncrementer stamps the named parameter with the current Unix milliseconds.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = "timestamp"
	}
	return &TimestampIncrementer{
		name: name,
		now:  time.Now,
	}
}

func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	nextParams := params.Copy()
	timestamp := i.now().UnixMilli()
	nextParams.Put(i.name, strconv.FormatInt(timestamp, 10))
	logger.Debugf("JobParametersIncrementer '%s': Setting '%s' to %d.", i.name, i.name, timestamp)
	return nextParams
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var (
	_ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
	_ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
)
