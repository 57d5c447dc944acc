package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploybot/deploybot/pkg/job"
)

func event(subject string) Event {
	return Event{Subject: subject, State: StatePending, JobID: "0190abc", Resource: "deploy.toml:svc", Repo: "git@example.com:svc", Tag: "v1", SHA: "abc123"}
}

func TestQueueIsUnboundedAndOrdered(t *testing.T) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	q := NewQueue(stop, wg)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Enqueue(event(s)))
	}
	q.Sync()
	assert.Equal(t, 5, q.Len())

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, s, (<-q.Ready()).Subject)
	}
	q.Sync()
	assert.Equal(t, 0, q.Len())

	close(stop)
	wg.Wait()
	assert.Equal(t, ErrStopped, q.Enqueue(event("late")))
}

func TestSlackMessageLayout(t *testing.T) {
	s := NewSlack(SlackConfig{
		Channel:  "#deploys",
		Username: "deploybot",
		Colors:   map[State]string{StatePending: "#cccccc", StateError: "#ff0000", StateSuccess: "#00ff00"},
	})
	e := event("git_stage_starting")
	msg := s.Message(e)
	assert.Equal(t, "#deploys", msg.Channel)
	assert.Equal(t, "deploybot", msg.Username)
	assert.Equal(t, "false", msg.AsUser)
	require.Len(t, msg.Attachments, 1)
	a := msg.Attachments[0]
	assert.Equal(t, "#cccccc", a.Color)
	assert.Equal(t, "*deploybot : 0190abc*", a.Pretext)
	assert.Equal(t, "git_stage_starting", a.Title)
	assert.Equal(t, "resource: deploy.toml:svc\ngit_repo: git@example.com:svc\ngit_tag: v1\ngit_sha: abc123", a.Text)

	e.State = StateError
	assert.Equal(t, "#ff0000", s.Message(e).Attachments[0].Color)
	e.State = State("other")
	assert.Equal(t, "#cccccc", s.Message(e).Attachments[0].Color)
}

func TestSlackNotify(t *testing.T) {
	var got SlackMsg
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	s := NewSlack(SlackConfig{URL: server.URL, Token: "xoxb-1", Channel: "#deploys", Username: "bot"})
	require.NoError(t, s.Notify(context.Background(), event("deploy_completed")))
	assert.Equal(t, "Bearer xoxb-1", auth)
	assert.Equal(t, "deploy_completed", got.Attachments[0].Title)
}

func TestSlackNotifyErrors(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		},
		"not ok": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			err := NewSlack(SlackConfig{URL: server.URL}).Notify(context.Background(), event("x"))
			assert.Error(t, err)
		})
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	fail   map[string]bool
	block  chan struct{}
}

func (n *recordingNotifier) Notify(ctx context.Context, e Event) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	if n.fail[e.Subject] {
		return assert.AnError
	}
	return nil
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var s []string
	for _, e := range n.events {
		s = append(s, e.Subject)
	}
	return s
}

func TestDispatcherDeliversInOrderWithoutRetry(t *testing.T) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	notifier := &recordingNotifier{fail: map[string]bool{"b": true}}
	d := NewDispatcher(notifier, nil, log.NewNopLogger(), stop, wg)
	wg.Add(1)
	go d.Loop(stop, wg)

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, d.Publish(event(s)))
	}
	assert.Eventually(t, func() bool { return len(notifier.subjects()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, notifier.subjects())
	assert.NoError(t, d.Health())

	close(stop)
	wg.Wait()
	assert.Error(t, d.Publish(event("late")))
	assert.Error(t, d.Health())
}

func TestPublishDoesNotWaitForDelivery(t *testing.T) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	notifier := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(notifier, nil, log.NewNopLogger(), stop, wg)
	wg.Add(1)
	go d.Loop(stop, wg)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Publish(event("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing blocked on a stuck notifier")
	}

	close(notifier.block)
	close(stop)
	wg.Wait()
}

func TestNewEvent(t *testing.T) {
	j := &job.Job{ID: "1", Locator: "deploy.toml:svc", Tag: "v1", SHA: "abc"}
	e := NewEvent("git_stage_starting", StatePending, j, "git@example.com:svc")
	assert.Equal(t, Event{Subject: "git_stage_starting", State: StatePending, JobID: "1", Resource: "deploy.toml:svc", Repo: "git@example.com:svc", Tag: "v1", SHA: "abc"}, e)
}
