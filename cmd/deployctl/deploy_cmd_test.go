package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploybot/deploybot/pkg/http/daemon"
	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/pki"
)

// keyPair writes a private key to keyPath and its public half into
// trustedDir.
func keyPair(t *testing.T, keyPath, trustedDir string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(keyPath, priv, 0600))
	pub := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	require.NoError(t, os.WriteFile(filepath.Join(trustedDir, "deployer.pem"), pub, 0644))
}

type jobs struct {
	sync.Mutex
	admitted []*job.Job
}

func (j *jobs) Enqueue(jb *job.Job) error {
	j.Lock()
	defer j.Unlock()
	j.admitted = append(j.admitted, jb)
	return nil
}

func (j *jobs) Status(id job.ID) (job.Status, bool) {
	return job.Status{StatusString: job.StatusSucceeded, SHA: "abc123", ImageTag: "svc:" + id.String()}, true
}

func execute(t *testing.T, url string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd := newRoot().Command()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--url", url}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestSignVerifies(t *testing.T) {
	dir := t.TempDir()
	trusted := filepath.Join(dir, "trusted")
	require.NoError(t, os.Mkdir(trusted, 0755))
	keyPath := filepath.Join(dir, "deploy.pem")
	keyPair(t, keyPath, trusted)

	out, err := execute(t, "http://unused", "sign", "--key", keyPath, "--message", "hello")
	require.NoError(t, err)
	gate := pki.NewGate(trusted, log.NewNopLogger())
	assert.NoError(t, gate.Verify("job", "hello", strings.TrimSpace(out)))
	assert.Error(t, gate.Verify("job", "goodbye", strings.TrimSpace(out)))

	_, err = execute(t, "http://unused", "sign", "--message", "hello")
	assert.Error(t, err)
}

func TestDeployCommand(t *testing.T) {
	dir := t.TempDir()
	trusted := filepath.Join(dir, "trusted")
	require.NoError(t, os.Mkdir(trusted, 0755))
	keyPath := filepath.Join(dir, "deploy.pem")
	keyPair(t, keyPath, trusted)

	js := &jobs{}
	server := daemon.NewServer(pki.NewGate(trusted, log.NewNopLogger()), js, "", nil, log.NewNopLogger())
	ts := httptest.NewServer(daemon.NewHandler(server, daemon.NewRouter()))
	defer ts.Close()

	out, err := execute(t, ts.URL, "deploy",
		"--repo", "git@example.com:org/svc.git", "--tag", "v1", "--path", "deploy.toml:svc",
		"--key", keyPath, "--wait")
	require.NoError(t, err)
	require.Len(t, js.admitted, 1)
	admitted := js.admitted[0]
	assert.Equal(t, "git@example.com:org/svc.git", admitted.Repo)
	assert.Equal(t, "v1", admitted.Tag)
	assert.Equal(t, "deploy.toml:svc", admitted.Locator)
	assert.Contains(t, out, "Job:\t"+admitted.ID.String())
	assert.Contains(t, out, "Image:\tsvc:"+admitted.ID.String())

	// a signature that no trusted key made is refused, but still gets an id
	out, err = execute(t, ts.URL, "deploy",
		"--repo", "r", "--tag", "v1", "--path", "p:k", "--signature", "c2ln")
	require.Error(t, err)
	assert.Contains(t, out, "Job:\t")
	assert.Len(t, js.admitted, 1)

	_, err = execute(t, ts.URL, "deploy", "--repo", "r", "--tag", "v1", "--path", "p:k")
	assert.IsType(t, usageError{}, err)
}

type statuses []job.Status

func (s *statuses) DeployStatus(ctx context.Context, id job.ID) (job.Status, error) {
	if len(*s) == 0 {
		return job.Status{}, errors.New("no more statuses")
	}
	next := (*s)[0]
	*s = (*s)[1:]
	return next, nil
}

func TestAwaitJob(t *testing.T) {
	s := &statuses{
		{StatusString: job.StatusQueued},
		{StatusString: job.StatusRunning},
		{StatusString: job.StatusSucceeded, SHA: "abc"},
	}
	status, err := awaitJob(context.Background(), s, "id", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "abc", status.SHA)

	s = &statuses{{StatusString: job.StatusFailed, Code: 400, Err: "unknown revision"}}
	_, err = awaitJob(context.Background(), s, "id", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
