package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaveworks/common/middleware"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
	transport "github.com/deploybot/deploybot/pkg/http"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/metrics"
	"github.com/deploybot/deploybot/pkg/ssh"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "deploybot",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelMethod, "route", "status_code", "ws"})

	admissions = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "deploybot",
		Subsystem: "http",
		Name:      "admissions_total",
		Help:      "Count of deploy requests, by outcome.",
	}, []string{metrics.LabelOutcome})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Admission outcomes, as counted.
const (
	OutcomeAccepted     = "accepted"
	OutcomeBadRequest   = "bad_request"
	OutcomeUnauthorized = "unauthorized"
	OutcomeBusy         = "busy"
)

// Verifier checks that a deploy request is vouched for.
type Verifier interface {
	Verify(jobID, plaintext, signature string) error
}

// Jobs admits jobs and reports on them.
type Jobs interface {
	Enqueue(j *job.Job) error
	Status(id job.ID) (job.Status, bool)
}

// HealthChecker is something that can be alive or not.
type HealthChecker interface {
	Health() error
}

type HTTPServer struct {
	gate     Verifier
	jobs     Jobs
	keyPath  string
	checks   map[string]HealthChecker
	logger   log.Logger
	newJobID func() job.ID
}

func NewServer(gate Verifier, jobs Jobs, keyPath string, checks map[string]HealthChecker, logger log.Logger) *HTTPServer {
	return &HTTPServer{
		gate:     gate,
		jobs:     jobs,
		keyPath:  keyPath,
		checks:   checks,
		logger:   logger,
		newJobID: job.NewID,
	}
}

func NewRouter() *mux.Router {
	return transport.NewAPIRouter()
}

func NewHandler(s *HTTPServer, r *mux.Router) http.Handler {
	r.Get(transport.Ping).HandlerFunc(s.Ping)
	r.Get(transport.Deploy).HandlerFunc(s.Deploy)
	r.Get(transport.DeployStatus).HandlerFunc(s.DeployStatus)
	r.Get(transport.Identity).HandlerFunc(s.Identity)
	r.Get(transport.Health).HandlerFunc(s.Health)
	r.Get(transport.Metrics).Handler(promhttp.Handler())

	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

func (s *HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	transport.JSONResponse(w, r, http.StatusOK, transport.PingResponse{Message: "pong"})
}

// Deploy admits a signed deploy request. The job id is allocated
// before anything else, so that every response carries one.
func (s *HTTPServer) Deploy(w http.ResponseWriter, r *http.Request) {
	id := s.newJobID()
	logger := log.With(s.logger, "jobID", id)

	reject := func(code int, outcome string, err error) {
		admissions.With(metrics.LabelOutcome, outcome).Add(1)
		logger.Log("event", "deploy_rejected", "outcome", outcome, "err", err)
		transport.JSONResponse(w, r, code, transport.DeployResponse{ID: id, Error: err.Error()})
	}

	var req transport.DeployRequest
	body := http.MaxBytesReader(w, r.Body, transport.MaxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		reject(http.StatusBadRequest, OutcomeBadRequest, transport.ErrorBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		reject(http.StatusBadRequest, OutcomeBadRequest, transport.ErrorBadRequest)
		return
	}

	if err := s.gate.Verify(id.String(), req.PlainMsg, req.CryptoSign); err != nil {
		reject(transport.StatusCode(deployerr.Unauthorized), OutcomeUnauthorized, err)
		return
	}

	j := &job.Job{ID: id, Repo: req.Repo, Tag: req.Tag, Locator: req.Path}
	if err := s.jobs.Enqueue(j); err != nil {
		reject(transport.StatusCode(deployerr.TypeOf(err)), OutcomeBusy, err)
		return
	}

	admissions.With(metrics.LabelOutcome, OutcomeAccepted).Add(1)
	logger.Log("event", "deploy_accepted", "tag", req.Tag, "path", req.Path)
	transport.JSONResponse(w, r, http.StatusAccepted, transport.DeployResponse{ID: id})
}

func (s *HTTPServer) DeployStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := s.jobs.Status(job.ID(id))
	if !ok {
		transport.ErrorResponse(w, r, transport.MakeJobNotFound(id))
		return
	}
	transport.JSONResponse(w, r, http.StatusOK, status)
}

func (s *HTTPServer) Identity(w http.ResponseWriter, r *http.Request) {
	key, err := ssh.ReadPublicKey(s.keyPath)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, http.StatusOK, key)
}

func (s *HTTPServer) Health(w http.ResponseWriter, r *http.Request) {
	resp := transport.HealthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check.Health(); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	transport.JSONResponse(w, r, code, resp)
}
