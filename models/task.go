package models

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the task can no longer change state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ScrapeTask is a background job as reported by GET /api/v1/scrape/status.
// Every poll replaces it wholesale.
type ScrapeTask struct {
	ID              string     `json:"id"`
	City            string     `json:"city"`
	Region          string     `json:"region"`
	PropertyType    string     `json:"property_type"`
	MaxPages        int        `json:"max_pages"`
	Status          TaskStatus `json:"status"`
	PropertiesFound *int       `json:"properties_found,omitempty"`
	Error           *string    `json:"error,omitempty"`
	StartTime       Timestamp  `json:"start_time"`
	EndTime         *Timestamp `json:"end_time,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
}

type TaskList struct {
	Tasks []ScrapeTask `json:"tasks"`
	Total int          `json:"total"`
}

type LogList struct {
	Logs []string `json:"logs"`
}

// Property types offered by the scrape form.
var PropertyTypeOptions = []string{
	"casas",
	"apartamentos",
	"fincas",
	"casas-campestres",
	"cabanas",
}

// ScrapeRequest is the POST /api/v1/scrape body.
type ScrapeRequest struct {
	City          string   `json:"city"`
	Region        string   `json:"region"`
	PropertyTypes []string `json:"property_types"`
	MaxPages      int      `json:"max_pages"`
}

// ScrapeAck acknowledges a job creation.
type ScrapeAck struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
	Status  string `json:"status,omitempty"`
}
