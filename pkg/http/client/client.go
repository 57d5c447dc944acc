package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
	transport "github.com/deploybot/deploybot/pkg/http"
	"github.com/deploybot/deploybot/pkg/http/httperror"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/ssh"
)

// Client talks to a deploybot daemon.
type Client struct {
	client   *http.Client
	router   *mux.Router
	endpoint string
}

func New(c *http.Client, router *mux.Router, endpoint string) *Client {
	return &Client{
		client:   c,
		router:   router,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	var resp transport.PingResponse
	return c.Get(ctx, &resp, transport.Ping)
}

// Deploy submits a signed request. The id in the response is valid
// even when the request is refused, in which case the error says why.
func (c *Client) Deploy(ctx context.Context, req transport.DeployRequest) (job.ID, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, transport.Deploy)
	if err != nil {
		return "", errors.Wrap(err, "constructing URL")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "encoding request body")
	}
	httpReq, err := http.NewRequest("POST", u, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrapf(err, "constructing request %s", u)
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	var result transport.DeployResponse
	respBody, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &httperror.APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}
	if resp.StatusCode != http.StatusAccepted {
		return result.ID, &httperror.APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: result.Error}
	}
	return result.ID, nil
}

func (c *Client) DeployStatus(ctx context.Context, id job.ID) (job.Status, error) {
	var status job.Status
	err := c.Get(ctx, &status, transport.DeployStatus, "id", id.String())
	return status, err
}

func (c *Client) Identity(ctx context.Context) (ssh.PublicKey, error) {
	var key ssh.PublicKey
	err := c.Get(ctx, &key, transport.Identity)
	return key, err
}

func (c *Client) Get(ctx context.Context, dest interface{}, route string, vars ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, vars...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	default:
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response body of error")
		}
		// Use the content type to discriminate between our own
		// errors and any old error
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError deployerr.Error
			if err := json.Unmarshal(body, &niceError); err == nil && niceError.Err != nil {
				return nil, &niceError
			}
		}
		return nil, &httperror.APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
}
