// Package report keeps a history of benchmark runs in a SQL database.
package report

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// BenchRun represents the bench_runs table.
type BenchRun struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"column:session_id;type:varchar(64);uniqueIndex" json:"session_id"`
	Host           string    `gorm:"column:host;type:varchar(255)" json:"host"`
	TopologySource string    `gorm:"column:topology_source;type:varchar(32)" json:"topology_source"`
	CPUs           int       `gorm:"column:cpus" json:"cpus"`
	HighWorkers    int       `gorm:"column:high_workers" json:"high_workers"`
	LowWorkers     int       `gorm:"column:low_workers" json:"low_workers"`
	Fallback       bool      `gorm:"column:fallback" json:"fallback"`
	Trees          int       `gorm:"column:trees" json:"trees"`
	Depth          int       `gorm:"column:depth" json:"depth"`
	Fanout         int       `gorm:"column:fanout" json:"fanout"`
	Jobs           int64     `gorm:"column:jobs" json:"jobs"`
	DurationNS     int64     `gorm:"column:duration_ns" json:"duration_ns"`
	Throughput     float64   `gorm:"column:throughput" json:"throughput"` // jobs per second
	CaptureKey     string    `gorm:"column:capture_key;type:varchar(512)" json:"capture_key,omitempty"`
	Plan           JSONField `gorm:"column:plan;type:json" json:"plan,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for BenchRun.
func (BenchRun) TableName() string {
	return "bench_runs"
}

// Duration returns the run's wall time.
func (r *BenchRun) Duration() time.Duration {
	return time.Duration(r.DurationNS)
}

// SetPlan stores v as the plan column.
func (r *BenchRun) SetPlan(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Plan = data
	return nil
}

// RunSummary aggregates every stored run.
type RunSummary struct {
	Runs           int64   `json:"runs"`
	AvgThroughput  float64 `json:"avg_throughput"`
	BestThroughput float64 `json:"best_throughput"`
	TotalJobs      int64   `json:"total_jobs"`
}

// JSONField stores raw JSON in a json column.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
