package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	maxOffsetMonths = 1200
	maxOffsetDays   = 36600
)

// RuleConfig is a tagged union with one variant per RuleType.
// The unexported method keeps the set of variants closed.
type RuleConfig interface {
	Type() RuleType
	validate() error
}

// FixedConfig recurs on a calendar cadence. BaseDate overrides the
// schedule's base date when set.
type FixedConfig struct {
	Frequency             Frequency `json:"frequency"`
	BaseDate              string    `json:"base_date,omitempty"`
	AdjustForBusinessDays bool      `json:"adjust_for_business_days,omitempty"`
}

// DynamicOffsetConfig fires at a baseline date plus an offset.
type DynamicOffsetConfig struct {
	BaselineDate string `json:"baseline_date"`
	OffsetMonths int    `json:"offset_months,omitempty"`
	OffsetDays   int    `json:"offset_days,omitempty"`
}

// EventBasedConfig offsets from the linked event's date. Both offsets
// missing leaves the rule dormant rather than invalid.
type EventBasedConfig struct {
	OffsetMonths *int `json:"offset_months,omitempty"`
	OffsetDays   *int `json:"offset_days,omitempty"`
}

// ConditionalConfig fires at the evaluation date plus an offset when the
// rule's trigger expression holds.
type ConditionalConfig struct {
	OffsetMonths int `json:"offset_months,omitempty"`
	OffsetDays   int `json:"offset_days,omitempty"`
}

func (FixedConfig) Type() RuleType         { return RuleFixed }
func (DynamicOffsetConfig) Type() RuleType { return RuleDynamicOffset }
func (EventBasedConfig) Type() RuleType    { return RuleEventBased }
func (ConditionalConfig) Type() RuleType   { return RuleConditional }

func (c FixedConfig) validate() error {
	if !ValidFrequencies[c.Frequency] {
		return NewValidationError("rule_config.frequency", "unrecognized frequency %q", c.Frequency)
	}
	if c.BaseDate != "" {
		if _, err := ParseDate(c.BaseDate); err != nil {
			return NewValidationError("rule_config.base_date", "%v", err)
		}
	}
	return nil
}

// Base returns the configured base date override, if any.
func (c FixedConfig) Base() (*time.Time, error) {
	if c.BaseDate == "" {
		return nil, nil
	}
	t, err := ParseDate(c.BaseDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c DynamicOffsetConfig) validate() error {
	if strings.TrimSpace(c.BaselineDate) == "" {
		return NewValidationError("rule_config.baseline_date", "is required")
	}
	if _, err := ParseDate(c.BaselineDate); err != nil {
		return NewValidationError("rule_config.baseline_date", "%v", err)
	}
	return validateOffsets(c.OffsetMonths, c.OffsetDays)
}

// Baseline parses the configured baseline date.
func (c DynamicOffsetConfig) Baseline() (time.Time, error) {
	return ParseDate(c.BaselineDate)
}

func (c EventBasedConfig) validate() error {
	var months, days int
	if c.OffsetMonths != nil {
		months = *c.OffsetMonths
	}
	if c.OffsetDays != nil {
		days = *c.OffsetDays
	}
	return validateOffsets(months, days)
}

// HasOffset reports whether at least one offset component is configured.
func (c EventBasedConfig) HasOffset() bool {
	return c.OffsetMonths != nil || c.OffsetDays != nil
}

// Offsets returns the configured offsets, treating a missing part as zero.
func (c EventBasedConfig) Offsets() (months, days int) {
	if c.OffsetMonths != nil {
		months = *c.OffsetMonths
	}
	if c.OffsetDays != nil {
		days = *c.OffsetDays
	}
	return months, days
}

func (c ConditionalConfig) validate() error {
	return validateOffsets(c.OffsetMonths, c.OffsetDays)
}

func validateOffsets(months, days int) error {
	if months > maxOffsetMonths || months < -maxOffsetMonths {
		return NewValidationError("rule_config.offset_months", "must be within ±%d", maxOffsetMonths)
	}
	if days > maxOffsetDays || days < -maxOffsetDays {
		return NewValidationError("rule_config.offset_days", "must be within ±%d", maxOffsetDays)
	}
	return nil
}

// ParseRuleConfig decodes a raw config blob into the variant for ruleType.
// Unknown fields and unknown rule types are rejected.
func ParseRuleConfig(ruleType RuleType, raw []byte) (RuleConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var cfg RuleConfig
	switch ruleType {
	case RuleFixed:
		var c FixedConfig
		if err := decodeStrict(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	case RuleDynamicOffset:
		var c DynamicOffsetConfig
		if err := decodeStrict(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	case RuleEventBased:
		var c EventBasedConfig
		if err := decodeStrict(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	case RuleConditional:
		var c ConditionalConfig
		if err := decodeStrict(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	default:
		return nil, NewValidationError("rule_type", "unrecognized rule type %q", ruleType)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalRuleConfig encodes a config variant for storage.
func MarshalRuleConfig(cfg RuleConfig) ([]byte, error) {
	if cfg == nil {
		return nil, NewValidationError("rule_config", "is required")
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding rule config: %w", err)
	}
	return b, nil
}

// ValidateRuleConfig runs the variant's own checks.
func ValidateRuleConfig(cfg RuleConfig) error {
	if cfg == nil {
		return NewValidationError("rule_config", "is required")
	}
	return cfg.validate()
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewValidationError("rule_config", "%v", err)
	}
	if dec.More() {
		return NewValidationError("rule_config", "trailing data after config object")
	}
	return nil
}
