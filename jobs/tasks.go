package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDatasetsWarm refreshes the cached Instagram and Names tables.
	TaskDatasetsWarm = "datasets:warm"
)

// DatasetsWarmPayload names the datasets to refresh; empty means all.
type DatasetsWarmPayload struct {
	Datasets []string `json:"datasets,omitempty"`
}

// NewDatasetsWarmTask constructs an Asynq task.
func NewDatasetsWarmTask(datasets ...string) (*asynq.Task, error) {
	data, err := json.Marshal(DatasetsWarmPayload{Datasets: datasets})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDatasetsWarm, data), nil
}
