package hermes

const (
	SubjectKAnonReport        = "godscore.kanon.report"
	SubjectRedactionViolation = "godscore.redaction.violation"
	SubjectAll                = "godscore.>"

	StreamName   = "GODSCORE_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// Weight version lifecycle subjects
func SubjectWeightsSuperseded(version string) string { return "godscore.weights." + version + ".superseded" }
func SubjectWeightsRolledBack(version string) string { return "godscore.weights." + version + ".rolled_back" }

func SubjectStartupRescored(startupID string) string { return "godscore.startup." + startupID + ".rescored" }
