package http

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

// MaxBodyBytes bounds the size of request bodies the daemon will read.
const MaxBodyBytes = 4096

func NewAPIRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(Ping).Methods("GET").Path("/ping")
	r.NewRoute().Name(Deploy).Methods("POST").Path("/api/v1/deploys")
	r.NewRoute().Name(DeployStatus).Methods("GET").Path("/api/v1/deploys/{id}")
	r.NewRoute().Name(Identity).Methods("GET").Path("/api/v1/identity.pub")
	r.NewRoute().Name(Health).Methods("GET").Path("/healthz")
	r.NewRoute().Name(Metrics).Methods("GET").Path("/metrics")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, MakeAPINotFound(r.URL.Path))
	})
	return r
}

// MakeURL gives the URL for the named route on the server at
// endpoint, with the route variables given as name, value pairs.
func MakeURL(endpoint string, router *mux.Router, routeName string, vars ...string) (string, error) {
	if len(vars)%2 != 0 {
		panic("vars must be even!")
	}
	route := router.Get(routeName)
	if route == nil {
		return "", errors.New("no route with name " + routeName)
	}
	routeURL, err := route.URLPath(vars...)
	if err != nil {
		return "", errors.Wrapf(err, "retrieving route path %s", routeName)
	}
	return endpoint + routeURL.Path, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// Clients that can decode JSON errors ask for them; anything else
	// gets the help text, or failing that the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		case "text/plain":
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
			w.WriteHeader(code)
			switch err := err.(type) {
			case *deployerr.Error:
				fmt.Fprint(w, err.Help)
			default:
				fmt.Fprint(w, err.Error())
			}
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

// JSONResponse writes result as JSON with the given status code.
func JSONResponse(w http.ResponseWriter, r *http.Request, code int, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

// StatusCode is the HTTP status for an error of the given type.
func StatusCode(t deployerr.Type) int {
	switch t {
	case deployerr.Missing:
		return http.StatusNotFound
	case deployerr.User:
		return http.StatusBadRequest
	case deployerr.Unauthorized:
		return http.StatusUnauthorized
	case deployerr.Unavailable:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *deployerr.Error
	if !stderrors.As(apiError, &outErr) {
		outErr = deployerr.CoverAllError(apiError)
	}
	WriteError(w, r, StatusCode(outErr.Type), outErr)
}
