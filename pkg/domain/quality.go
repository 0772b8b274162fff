package domain

// QualityThreshold is the per-severity pair of percentages a cycle definition
// configures. Below failure the severity fails; between failure and warning
// it is worth displaying, but the verdict stays PASSED.
type QualityThreshold struct {
	Failure int `json:"failure"`
	Warning int `json:"warning"`
}

// ScenarioCount aggregates scenario outcomes for one severity.
type ScenarioCount struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
	Passed int `json:"passed"`
}

// QualitySeverity is one entry of the per-severity quality breakdown
// serialized onto an execution.
type QualitySeverity struct {
	Severity      Severity         `json:"severity"`
	ScenarioCount ScenarioCount    `json:"scenarioCounts"`
	Percent       int              `json:"percent"`
	Status        QualityStatus    `json:"status"`
	Thresholds    QualityThreshold `json:"thresholds"`
}
