// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"service-discovery/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobHandler is the handler signature expected by the Zeebe client.
type JobHandler func(client worker.JobClient, job entities.Job)

// StartWorker opens a job worker for taskType. Disabled workers are skipped and reported
// as not started.
func (c *Client) StartWorker(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		c.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	step := c.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler))
	if wcfg.MaxJobsActive > 0 {
		step = step.MaxJobsActive(wcfg.MaxJobsActive)
	}
	if wcfg.Timeout > 0 {
		step = step.Timeout(time.Duration(wcfg.Timeout) * time.Millisecond)
	}
	jobWorker := step.Open()

	c.mu.Lock()
	c.workers = append(c.workers, jobWorker)
	c.mu.Unlock()

	c.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}
