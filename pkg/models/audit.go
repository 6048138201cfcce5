package models

import "time"

// AuditEntry records one orchestrated generation call.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	SubjectHash      string    `json:"subject_hash"`
	SubjectPrefix    string    `json:"subject_prefix"`
	Provider         string    `json:"provider"`
	Category         string    `json:"category"`
	Complexity       string    `json:"complexity"`
	Tier             string    `json:"tier"`
	Status           string    `json:"status"` // ok, rate_limited, timeout, upstream_error
	FromCache        bool      `json:"from_cache"`
	Degraded         bool      `json:"degraded"`
	Prompt           string    `json:"prompt,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DBPath         string `yaml:"db_path"`
	RetentionDays  int    `yaml:"retention_days"`
	IncludePrompts bool   `yaml:"include_prompts"`
	MaxPromptSize  int    `yaml:"max_prompt_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	RequestID     string
	Provider      string
	Status        string
	SubjectPrefix string
	Since         time.Time
	Limit         int
}

// AuditStat holds aggregate audit counts for a provider/day combination.
type AuditStat struct {
	Provider string
	Day      string
	Count    int
}
