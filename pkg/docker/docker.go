// Package docker builds a job's image with the Docker Engine API and
// pushes it to the registry its name points at.
package docker

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/deploybot/deploybot/pkg/job"
	"github.com/deploybot/deploybot/pkg/manifest"
)

// ImageAPI is the part of the Docker client the build stage uses.
type ImageAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, image string, options types.ImagePushOptions) (io.ReadCloser, error)
}

// NewClient connects to the daemon at host, e.g.,
// unix:///var/run/docker.sock or tcp://docker:2375.
func NewClient(host string) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrapf(err, "creating docker client for %s", host)
	}
	return cli, nil
}

// Builder builds and pushes images tagged with the job id.
type Builder struct {
	api    ImageAPI
	auth   string
	logger log.Logger
}

// NewBuilder returns a Builder pushing with registryAuth (the
// encoded X-Registry-Auth value); empty means anonymous, relying on
// the daemon's own credentials.
func NewBuilder(api ImageAPI, registryAuth string, logger log.Logger) (*Builder, error) {
	if registryAuth == "" {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{})
		if err != nil {
			return nil, err
		}
		registryAuth = encoded
	}
	return &Builder{api: api, auth: registryAuth, logger: logger}, nil
}

// ImageTag is the tag an image is built and pushed under for a job.
func ImageTag(imageName string, id job.ID) string {
	return imageName + ":" + id.String()
}

// Build resolves the job's resource, builds its docker_file with dir
// as the context, and pushes the result. It returns the image tag.
func (b *Builder) Build(ctx context.Context, dir string, j *job.Job) (string, error) {
	logger := log.With(b.logger, "jobID", j.ID)

	res, err := manifest.ResolveIn(dir, j.Locator)
	if err != nil {
		return "", err
	}
	dockerFile, imageName, err := res.BuildSpec()
	if err != nil {
		return "", err
	}
	tag := ImageTag(imageName, j.ID)

	begin := time.Now()
	if err := b.build(ctx, dir, dockerFile, tag); err != nil {
		logger.Log("event", "docker_build_exception", "image", tag, "err", err)
		return "", err
	}
	logger.Log("event", "docker_build_ok", "image", tag, "took", time.Since(begin))

	begin = time.Now()
	if err := b.push(ctx, tag); err != nil {
		logger.Log("event", "docker_push_exception", "image", tag, "err", err)
		return "", err
	}
	logger.Log("event", "docker_push_ok", "image", tag, "took", time.Since(begin))
	return tag, nil
}

func (b *Builder) build(ctx context.Context, dir, dockerFile, tag string) error {
	buildContext, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return errors.Wrap(err, "archiving build context")
	}
	defer buildContext.Close()

	resp, err := b.api.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  dockerFile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return errors.Wrap(err, "building image")
	}
	defer resp.Body.Close()
	return errors.Wrap(drain(resp.Body), "building image")
}

func (b *Builder) push(ctx context.Context, tag string) error {
	body, err := b.api.ImagePush(ctx, tag, types.ImagePushOptions{RegistryAuth: b.auth})
	if err != nil {
		return errors.Wrap(err, "pushing image")
	}
	defer body.Close()
	return errors.Wrap(drain(body), "pushing image")
}

// drain reads a progress stream to the end, returning the first error
// reported in it.
func drain(stream io.Reader) error {
	var out bytes.Buffer
	if err := jsonmessage.DisplayJSONMessagesStream(stream, &out, 0, false, nil); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return errors.Wrap(err, lastLine(msg))
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
