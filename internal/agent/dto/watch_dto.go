package dto

type ListWatchesRequest struct {
	State    string `form:"state"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListWatchesResponse struct {
	Watches    []WatchDTO `json:"watches"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type WatchDTO struct {
	JobID           string `json:"job_id"`
	Key             string `json:"key"`
	State           string `json:"state"`
	Interval        string `json:"interval"`
	RequiresNetwork bool   `json:"requires_network"`
	Attempts        int    `json:"attempts"`
	LastError       string `json:"last_error,omitempty"`
	NextRun         string `json:"next_run,omitempty"`
	CreatedAt       string `json:"created_at"`
}
