package usecase

import (
	"sort"
	"sync"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

// JobRegistration pairs a job with the optional incrementer applied on every launch.
type JobRegistration struct {
	Job         port.Job
	Incrementer port.JobParametersIncrementer
}

// JobRegistry holds the jobs the launcher can start, by name.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]JobRegistration
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]JobRegistration)}
}

// Register adds job. A later registration under the same name replaces the earlier one.
func (r *JobRegistry) Register(job port.Job, incrementer port.JobParametersIncrementer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobName()] = JobRegistration{Job: job, Incrementer: incrementer}
}

func (r *JobRegistry) Get(jobName string) (JobRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.jobs[jobName]
	if !ok {
		return JobRegistration{}, exception.NewBatchErrorf("job_registry", "job '%s' is not registered", jobName)
	}
	return reg, nil
}

// JobNames returns the registered names in sorted order.
func (r *JobRegistry) JobNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
