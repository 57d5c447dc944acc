package kube

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

const (
	// ImagePlaceholder is replaced, wherever it appears, by the image
	// tag built for the job.
	ImagePlaceholder = ":image_name"
	// LatestSuffix is appended to the name of each rewritten file.
	LatestSuffix = ".latest"
)

func LatestPath(file string) string {
	return file + LatestSuffix
}

// Rewrite reads each of files (relative to dir), substitutes imageTag
// for every ImagePlaceholder, and writes the result alongside as
// <file>.latest. It stops at the first file that cannot be read or
// written; files already rewritten are left where they are. The
// returned paths are relative to dir, in the order given.
func Rewrite(dir string, files []string, imageTag string) ([]string, error) {
	latest := make([]string, 0, len(files))
	for _, file := range files {
		src := filepath.Join(dir, file)
		data, err := os.ReadFile(src)
		if err != nil {
			return latest, templateError(file, errors.Wrap(err, "reading resource file"))
		}
		info, err := os.Stat(src)
		if err != nil {
			return latest, templateError(file, err)
		}
		out := bytes.Replace(data, []byte(ImagePlaceholder), []byte(imageTag), -1)
		if err := os.WriteFile(LatestPath(src), out, info.Mode().Perm()); err != nil {
			return latest, templateError(file, errors.Wrap(err, "writing rewritten resource file"))
		}
		latest = append(latest, LatestPath(file))
	}
	return latest, nil
}

func templateError(file string, err error) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  err,
		Help: `Could not rewrite resource file ` + file + `

Every file listed in console_files and resource_files must exist in the
repository at the commit being deployed.
`,
	}
}
