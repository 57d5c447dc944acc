package pipeline

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/deploybot/deploybot/pkg/job"
)

const DefaultWorkspaceBase = "/var/tmp/deploybot"

// Workspace lays out per-job directories under Base. A job's
// directory is <Base>/<id>, and a marker file <Base>/<id>.txt records
// that the job is in progress.
type Workspace struct {
	Base string
}

func (w Workspace) Dir(id job.ID) string {
	return filepath.Join(w.Base, id.String())
}

func (w Workspace) Marker(id job.ID) string {
	return filepath.Join(w.Base, id.String()+".txt")
}

// Create writes the marker. The directory itself is left for the
// clone to make.
func (w Workspace) Create(id job.ID) error {
	if err := os.MkdirAll(w.Base, 0755); err != nil {
		return errors.Wrap(err, "creating workspace base")
	}
	if err := os.WriteFile(w.Marker(id), nil, 0644); err != nil {
		return errors.Wrap(err, "creating workspace marker")
	}
	return nil
}

// Remove deletes the job's directory and marker, whatever state they
// are in.
func (w Workspace) Remove(id job.ID) error {
	dirErr := os.RemoveAll(w.Dir(id))
	markerErr := os.Remove(w.Marker(id))
	if os.IsNotExist(markerErr) {
		markerErr = nil
	}
	if dirErr != nil {
		return errors.Wrap(dirErr, "removing workspace")
	}
	return errors.Wrap(markerErr, "removing workspace marker")
}
