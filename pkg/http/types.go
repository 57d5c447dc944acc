package http

import (
	"github.com/deploybot/deploybot/pkg/job"
)

// DeployRequest is the body of a deploy request. Path is the resource
// locator, "<manifest-path>:<resource-key>"; CryptoSign is the base64
// RSA/SHA-256 signature of PlainMsg.
type DeployRequest struct {
	Repo       string `json:"repo" validate:"required"`
	Tag        string `json:"tag" validate:"required"`
	Path       string `json:"path" validate:"required"`
	PlainMsg   string `json:"plain_msg" validate:"required"`
	CryptoSign string `json:"crypto_sign" validate:"required"`
}

// DeployResponse carries the job id whatever the outcome.
type DeployResponse struct {
	ID    job.ID `json:"id"`
	Error string `json:"error,omitempty"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
