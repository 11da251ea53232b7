package domain

import "time"

// TriggerExecutionLog is one evaluation attempt. Rows are append-only.
type TriggerExecutionLog struct {
	ID           string
	RuleID       string
	ExecutedAt   time.Time
	Status       ExecutionStatus
	Result       map[string]any
	Context      map[string]any
	ErrorMessage *string
	DurationMS   int64
	DedupKey     string
}

// ExecutionStats aggregates a rule's full execution history.
type ExecutionStats struct {
	RuleID             string
	TotalExecutions    int
	SuccessCount       int
	FailureCount       int
	AvgExecutionTimeMS int64
}

// ExecutionFilter narrows an execution history query. From is inclusive,
// To is exclusive.
type ExecutionFilter struct {
	Status *ExecutionStatus
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

type ExecutionPage struct {
	Items      []*TriggerExecutionLog
	NextCursor string
}

// Keys used in TriggerExecutionLog.Result.
const (
	ResultFired     = "fired"
	ResultDate      = "next_execution_date"
	ResultDuplicate = "duplicate"
	ResultMatched   = "matched"
	ResultRuleType  = "rule_type"
	ResultDeadline  = "deadline_id"
)
