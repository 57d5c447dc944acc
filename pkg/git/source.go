package git

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log"

	"github.com/deploybot/deploybot/pkg/job"
)

const (
	// DeployBranchPrefix is prepended to the job id to name the branch
	// that is checked out for the build.
	DeployBranchPrefix = "deploy/"
	remoteName         = "origin"
)

// Source clones repositories over ssh with a single deploy key, and
// checks out the commit a deploy request names.
type Source struct {
	keyPath string
	logger  log.Logger
}

// NewSource returns a Source using the private key at keyPath. A
// relative path is taken relative to $HOME.
func NewSource(keyPath string, logger log.Logger) *Source {
	if keyPath != "" && !filepath.IsAbs(keyPath) {
		if home, err := os.UserHomeDir(); err == nil {
			keyPath = filepath.Join(home, keyPath)
		}
	}
	return &Source{keyPath: keyPath, logger: logger}
}

func (s *Source) KeyPath() string {
	return s.keyPath
}

// Fetch clones j.Repo into dir, resolves j.Tag to a commit and checks
// that commit out on a fresh branch named for the job. It returns the
// commit.
func (s *Source) Fetch(ctx context.Context, dir string, j *job.Job) (string, error) {
	logger := log.With(s.logger, "jobID", j.ID, "repo", SafeURL(j.Repo))

	if err := clone(ctx, j.Repo, dir, sshEnv(s.keyPath)); err != nil {
		return "", CloningError(SafeURL(j.Repo), err)
	}

	spec, err := ParseRevSpec(j.Tag)
	if err != nil {
		return "", UnknownRevisionError(j.Tag, err)
	}
	sha, err := s.resolve(ctx, dir, spec, logger)
	if err != nil {
		return "", UnknownRevisionError(j.Tag, err)
	}

	branch := DeployBranchPrefix + j.ID.String()
	if err := checkoutBranch(ctx, dir, branch, sha); err != nil {
		return "", CheckoutError(sha, err)
	}
	logger.Log("event", "git_checkout", "tag", j.Tag, "sha", sha, "branch", branch)
	return sha, nil
}

func (s *Source) resolve(ctx context.Context, dir string, spec RevSpec, logger log.Logger) (string, error) {
	from, err := resolveRef(ctx, dir, spec.From)
	if err != nil {
		return "", err
	}
	switch spec.Kind {
	case RangeRev:
		if _, err := resolveRef(ctx, dir, spec.To); err != nil {
			return "", err
		}
	case SymmetricRev:
		to, err := resolveRef(ctx, dir, spec.To)
		if err != nil {
			return "", err
		}
		base, err := mergeBase(ctx, dir, from, to)
		if err != nil {
			return "", err
		}
		logger.Log("event", "git_merge_base", "from", spec.From, "to", spec.To, "base", base)
	}
	return from, nil
}

// resolveRef tries ref as given, then as a branch of the remote; only
// the default branch exists locally after a clone.
func resolveRef(ctx context.Context, dir, ref string) (string, error) {
	sha, err := revParse(ctx, dir, ref)
	if err == nil {
		return sha, nil
	}
	if remoteSHA, remoteErr := revParse(ctx, dir, remoteName+"/"+ref); remoteErr == nil {
		return remoteSHA, nil
	}
	return "", err
}
