package http

// Route names, used for routing and for labelling request metrics.
const (
	Ping         = "Ping"
	Deploy       = "Deploy"
	DeployStatus = "DeployStatus"
	Identity     = "Identity"
	Health       = "Health"
	Metrics      = "Metrics"
)
