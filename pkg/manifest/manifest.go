// Package manifest resolves resource blocks from the TOML manifest
// that lives in each deployed repository, e.g.,
//
//	[[resources]]
//	name = "api-staging"
//	docker_file = "Dockerfile"
//	image_name = "registry.example.com/api"
//	kube_context = "staging"
//	console_files = ["kubernetes/migrate.yml"]
//	resource_files = ["kubernetes/api.yml"]
//	watches = [{ cmd = "kubectl rollout status deployment/api", wait = 120, sleep = 10 }]
package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

const (
	DefaultWait  = 60 * time.Second
	DefaultSleep = 20 * time.Second
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by the names used in the manifest
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
	})
	return v
}

// File is the whole manifest document.
type File struct {
	Resources *[]Resource `toml:"resources"`
}

// Resource is one named block from the manifest. Fields are only
// checked when a stage asks for them, since not every stage needs
// every field.
type Resource struct {
	Name          string   `toml:"name"`
	DockerFile    string   `toml:"docker_file" validate:"required"`
	ImageName     string   `toml:"image_name" validate:"required"`
	KubeContext   string   `toml:"kube_context" validate:"required"`
	ConsoleFiles  []string `toml:"console_files"`
	ResourceFiles []string `toml:"resource_files"`
	// Watches are decoded only when asked for, so that a malformed
	// watch cannot fail the other stages.
	Watches *toml.Primitive `toml:"watches"`

	meta toml.MetaData
}

// Watch is a rollout check as written in the manifest; wait and sleep
// are in seconds.
type Watch struct {
	Cmd   string `toml:"cmd" validate:"required"`
	Wait  *int64 `toml:"wait"`
	Sleep *int64 `toml:"sleep"`
}

// WatchSpec is a Watch with its defaults filled in.
type WatchSpec struct {
	Cmd   string
	Wait  time.Duration
	Sleep time.Duration
}

// Error makes a resolution failure. These are always the caller's
// problem: the manifest is part of the repo they asked us to deploy.
func Error(err error) error {
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  err,
		Help: `The resource manifest could not be resolved

` + err.Error() + `

Check that the path given in the deploy request points at a TOML file
in the repository, that it has a [[resources]] block whose name matches
the resource key, and that the block has the fields needed.
`,
	}
}

// ParseLocator splits "<manifest-path>:<resource-key>" on the first
// colon.
func ParseLocator(locator string) (manifestPath, resourceKey string, err error) {
	i := strings.Index(locator, ":")
	if i <= 0 || i == len(locator)-1 {
		return "", "", Error(errors.Errorf("resource locator %q is not of the form <manifest>:<resource>", locator))
	}
	return locator[:i], locator[i+1:], nil
}

// Resolve loads the manifest at manifestPath and returns the resource
// block named resourceKey.
func Resolve(manifestPath, resourceKey string) (*Resource, error) {
	bytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, Error(errors.Wrap(err, "reading manifest"))
	}
	return Parse(bytes, resourceKey)
}

// ResolveIn resolves a "<manifest-path>:<resource-key>" locator whose
// path is relative to dir.
func ResolveIn(dir, locator string) (*Resource, error) {
	manifestPath, resourceKey, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	return Resolve(filepath.Join(dir, manifestPath), resourceKey)
}

// Parse finds the resource block named resourceKey in a manifest
// document.
func Parse(data []byte, resourceKey string) (*Resource, error) {
	var file File
	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, Error(errors.Wrap(err, "parsing manifest"))
	}
	if file.Resources == nil {
		return nil, Error(errors.New("manifest has no resources"))
	}
	for _, r := range *file.Resources {
		if r.Name == resourceKey {
			res := r
			res.meta = meta
			return &res, nil
		}
	}
	return nil, Error(errors.Errorf("no resource named %q in manifest", resourceKey))
}

// BuildSpec returns the dockerfile and image name used to build this
// resource.
func (r *Resource) BuildSpec() (dockerFile, imageName string, err error) {
	if err := r.require("DockerFile", "ImageName"); err != nil {
		return "", "", err
	}
	return r.DockerFile, r.ImageName, nil
}

// Context returns the kube context the resource files are applied to.
func (r *Resource) Context() (string, error) {
	if err := r.require("KubeContext"); err != nil {
		return "", err
	}
	return r.KubeContext, nil
}

// Files lists the console files then the resource files, in the order
// they were given.
func (r *Resource) Files() []string {
	files := make([]string, 0, len(r.ConsoleFiles)+len(r.ResourceFiles))
	files = append(files, r.ConsoleFiles...)
	return append(files, r.ResourceFiles...)
}

// WatchSpecs returns the rollout checks for this resource. An absent
// watches key is an error; an empty list is not.
func (r *Resource) WatchSpecs() ([]WatchSpec, error) {
	if r.Watches == nil {
		return nil, Error(errors.Errorf("resource %q has no watches", r.Name))
	}
	var watches []Watch
	if err := r.meta.PrimitiveDecode(*r.Watches, &watches); err != nil {
		return nil, Error(errors.Wrapf(err, "decoding watches of resource %q", r.Name))
	}
	specs := make([]WatchSpec, 0, len(watches))
	for i, w := range watches {
		w.Cmd = strings.TrimSpace(w.Cmd)
		if err := validate.Struct(w); err != nil {
			return nil, Error(errors.Errorf("watch %d of resource %q has no cmd", i, r.Name))
		}
		spec := WatchSpec{Cmd: w.Cmd, Wait: DefaultWait, Sleep: DefaultSleep}
		if w.Wait != nil {
			spec.Wait = time.Duration(*w.Wait) * time.Second
		}
		if w.Sleep != nil {
			spec.Sleep = time.Duration(*w.Sleep) * time.Second
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (r *Resource) require(fields ...string) error {
	if err := validate.StructPartial(r, fields...); err != nil {
		var missing []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
		}
		if len(missing) == 0 {
			return Error(errors.Wrapf(err, "resource %q", r.Name))
		}
		return Error(errors.Errorf("resource %q is missing %s", r.Name, strings.Join(missing, ", ")))
	}
	return nil
}
