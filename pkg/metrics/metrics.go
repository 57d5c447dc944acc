package metrics

/*
Labels and so on for metrics used in deploybot.
*/

const (
	LabelMethod  = "method"
	LabelSuccess = "success"
	LabelStage   = "stage"
	LabelOutcome = "outcome"
	LabelState   = "state"
)
