// Package job keeps the items an ingestion run had to skip, so they can be
// inspected and retried.
package job

import (
	"time"
)

// Job is one failed ingestion item. A source fails at most once per stage;
// repeated failures bump Retries.
type Job struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
