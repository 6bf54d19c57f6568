package models

import "time"

type SchedulerStats struct {
	Total      int            `json:"total"`
	Scheduled  int            `json:"scheduled"`
	Retrying   int            `json:"retrying"`
	Publishing int            `json:"publishing"`
	Published  int            `json:"published"`
	Failed     int            `json:"failed"`
	Cancelled  int            `json:"cancelled"`
	ByPlatform map[string]int `json:"by_platform"`
}

type DLQStats struct {
	Total         int            `json:"total"`
	ByPlatform    map[string]int `json:"by_platform"`
	ByErrorType   map[string]int `json:"by_error_type"`
	OldestFailure *time.Time     `json:"oldest_failure,omitempty"`
}
