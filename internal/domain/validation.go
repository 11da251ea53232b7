package domain

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

type Issue struct {
	Field    string
	Severity Severity
	Message  string
}

// ReportStatus keeps "warnings only" distinct from both "no issues" and
// "errors present".
type ReportStatus string

const (
	ReportValid    ReportStatus = "VALID"
	ReportWarnings ReportStatus = "WARNINGS"
	ReportInvalid  ReportStatus = "INVALID"
)

type ValidationReport struct {
	Issues []Issue
}

func (r *ValidationReport) AddError(field, msg string) {
	r.Issues = append(r.Issues, Issue{Field: field, Severity: SeverityError, Message: msg})
}

func (r *ValidationReport) AddWarning(field, msg string) {
	r.Issues = append(r.Issues, Issue{Field: field, Severity: SeverityWarning, Message: msg})
}

func (r *ValidationReport) Status() ReportStatus {
	status := ReportValid
	for _, iss := range r.Issues {
		if iss.Severity == SeverityError {
			return ReportInvalid
		}
		status = ReportWarnings
	}
	return status
}

// Err returns the first error issue as a ValidationError, or nil.
func (r *ValidationReport) Err() error {
	for _, iss := range r.Issues {
		if iss.Severity == SeverityError {
			return &ValidationError{Field: iss.Field, Message: iss.Message}
		}
	}
	return nil
}

// Warnings returns the warning messages in order.
func (r *ValidationReport) Warnings() []string {
	var out []string
	for _, iss := range r.Issues {
		if iss.Severity == SeverityWarning {
			out = append(out, iss.Field+": "+iss.Message)
		}
	}
	return out
}
