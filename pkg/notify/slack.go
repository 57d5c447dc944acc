package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultSlackURL = "https://slack.com/api/chat.postMessage"

var (
	httpClient = &http.Client{Timeout: 5 * time.Second}
)

type SlackMsg struct {
	Channel     string            `json:"channel"`
	Username    string            `json:"username"`
	AsUser      string            `json:"as_user"`
	Attachments []SlackAttachment `json:"attachments"`
}

type SlackAttachment struct {
	Color   string `json:"color,omitempty"`
	Pretext string `json:"pretext"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// SlackConfig is where and how to post. Colors are keyed by event
// state; an unknown state gets the pending color.
type SlackConfig struct {
	URL      string
	Token    string
	Channel  string
	Username string
	Colors   map[State]string
}

// Slack posts events with chat.postMessage.
type Slack struct {
	config SlackConfig
	client *http.Client
}

func NewSlack(config SlackConfig) *Slack {
	if config.URL == "" {
		config.URL = DefaultSlackURL
	}
	return &Slack{config: config, client: httpClient}
}

// Message lays out an event as a single attachment, titled with the
// subject and colored by the state.
func (s *Slack) Message(e Event) SlackMsg {
	color, ok := s.config.Colors[e.State]
	if !ok {
		color = s.config.Colors[StatePending]
	}
	text := strings.Join([]string{
		"resource: " + e.Resource,
		"git_repo: " + e.Repo,
		"git_tag: " + e.Tag,
		"git_sha: " + e.SHA,
	}, "\n")
	return SlackMsg{
		Channel:  s.config.Channel,
		Username: s.config.Username,
		AsUser:   "false",
		Attachments: []SlackAttachment{{
			Color:   color,
			Pretext: fmt.Sprintf("*%s : %s*", s.config.Username, e.JobID),
			Title:   e.Subject,
			Text:    text,
		}},
	}
}

// Notify posts the event. Slack reports most failures as 200 with
// {"ok": false}, so both are checked.
func (s *Slack) Notify(ctx context.Context, e Event) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(s.Message(e)); err != nil {
		return errors.Wrap(err, "encoding Slack POST request")
	}

	req, err := http.NewRequest("POST", s.config.URL, buf)
	if err != nil {
		return errors.Wrap(err, "constructing Slack HTTP request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP POST to Slack")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s from Slack (%s)", resp.Status, strings.TrimSpace(string(body)))
	}

	var reply struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return errors.Wrap(err, "decoding Slack response")
	}
	if !reply.OK {
		return fmt.Errorf("error from Slack (%s)", reply.Error)
	}
	return nil
}
