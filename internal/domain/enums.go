package domain

type Frequency string

const (
	FrequencyDaily          Frequency = "DAILY"
	FrequencyWeekly         Frequency = "WEEKLY"
	FrequencyMonthly        Frequency = "MONTHLY"
	FrequencyQuarterly      Frequency = "QUARTERLY"
	FrequencyAnnual         Frequency = "ANNUAL"
	FrequencyOneTime        Frequency = "ONE_TIME"
	FrequencyContinuous     Frequency = "CONTINUOUS"
	FrequencyEventTriggered Frequency = "EVENT_TRIGGERED"
)

// ValidFrequencies is the canonical set of accepted frequency strings.
var ValidFrequencies = map[Frequency]bool{
	FrequencyDaily: true, FrequencyWeekly: true, FrequencyMonthly: true,
	FrequencyQuarterly: true, FrequencyAnnual: true, FrequencyOneTime: true,
	FrequencyContinuous: true, FrequencyEventTriggered: true,
}

// IsRecurring reports whether the frequency advances by a fixed calendar period.
func (f Frequency) IsRecurring() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return true
	}
	return false
}

type ScheduleStatus string

const (
	ScheduleActive   ScheduleStatus = "ACTIVE"
	SchedulePaused   ScheduleStatus = "PAUSED"
	ScheduleArchived ScheduleStatus = "ARCHIVED"
)

type DeadlineStatus string

const (
	DeadlinePending   DeadlineStatus = "PENDING"
	DeadlineOverdue   DeadlineStatus = "OVERDUE"
	DeadlineCompleted DeadlineStatus = "COMPLETED"
)

type RuleType string

const (
	RuleDynamicOffset RuleType = "DYNAMIC_OFFSET"
	RuleEventBased    RuleType = "EVENT_BASED"
	RuleConditional   RuleType = "CONDITIONAL"
	RuleFixed         RuleType = "FIXED"
)

// ValidRuleTypes is the canonical set of accepted rule type strings.
var ValidRuleTypes = map[RuleType]bool{
	RuleDynamicOffset: true, RuleEventBased: true, RuleConditional: true, RuleFixed: true,
}

// Lifecycle replaces the is_active flag on rules and events.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "ACTIVE"
	LifecycleInactive Lifecycle = "INACTIVE"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
)

type Granularity string

const (
	GranularityAnnual  Granularity = "ANNUAL"
	GranularityMonthly Granularity = "MONTHLY"
)
