package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deploybot/deploybot/pkg/notify"
	"github.com/deploybot/deploybot/pkg/pipeline"
)

// Config is everything deployd needs to start. Each field can be given
// as a flag, an environment variable or a key in the config file, in
// descending order of precedence.
type Config struct {
	Listen     string `mapstructure:"listen" validate:"required"`
	DockerHost string `mapstructure:"docker-host" validate:"required"`
	GitSSHKey  string `mapstructure:"git-ssh-key" validate:"required"`
	PKIDir     string `mapstructure:"pki-dir" validate:"required"`

	SlackToken        string  `mapstructure:"slack-token" validate:"required"`
	SlackChannel      string  `mapstructure:"slack-channel" validate:"required"`
	SlackUsername     string  `mapstructure:"slack-username" validate:"required"`
	SlackColorError   string  `mapstructure:"slack-color-error" validate:"required"`
	SlackColorPending string  `mapstructure:"slack-color-pending" validate:"required"`
	SlackColorSuccess string  `mapstructure:"slack-color-success" validate:"required"`
	SlackURL          string  `mapstructure:"slack-url" validate:"required,url"`
	NotifyRate        float64 `mapstructure:"notify-rate" validate:"gt=0"`

	WorkspaceDir    string `mapstructure:"workspace-dir" validate:"required"`
	Kubectl         string `mapstructure:"kubectl" validate:"required"`
	RegistryAuth    string `mapstructure:"registry-auth"`
	StatusCacheSize int    `mapstructure:"status-cache-size" validate:"gte=0"`
}

// Environment variables recognised for each config field.
var configEnv = map[string]string{
	"Listen":            "LISTEN_ADDRESS",
	"DockerHost":        "DOCKER_HOST_URI",
	"GitSSHKey":         "GIT_SSH_KEY",
	"PKIDir":            "PKI_DIR_ANY",
	"SlackToken":        "SLACK_API_TOKEN",
	"SlackChannel":      "SLACK_CHANNEL_NAME",
	"SlackUsername":     "SLACK_USERNAME",
	"SlackColorError":   "SLACK_COLOR_ERROR",
	"SlackColorPending": "SLACK_COLOR_PENDING",
	"SlackColorSuccess": "SLACK_COLOR_SUCCESS",
	"SlackURL":          "SLACK_API_URL",
	"NotifyRate":        "NOTIFY_RATE",
	"WorkspaceDir":      "WORKSPACE_DIR",
	"Kubectl":           "KUBECTL",
	"RegistryAuth":      "REGISTRY_AUTH",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// configKey is the viper key for a field of Config, i.e., its
// mapstructure name.
func configKey(fieldName string) (string, error) {
	field, ok := reflect.TypeOf(Config{}).FieldByName(fieldName)
	if !ok {
		return "", fmt.Errorf("attempt to bind a flag to a field not present in Config, %q", fieldName)
	}
	// this parallels the logic in
	// github.com/mitchellh/mapstructure, except that we want to
	// bail if a field is mentioned that is marked ignore, like
	// this: `mapstructure:"-"`
	mappedName := field.Name
	mapstructureTagParts := strings.Split(field.Tag.Get("mapstructure"), ",")
	if namePart := mapstructureTagParts[0]; namePart != "" {
		if namePart == "-" { // means ignore this field
			return "", fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
		}
		mappedName = namePart
	}
	return mappedName, nil
}

// defineConfigFlags defines the flags that can also be set in the
// environment or a config file. These need special treatment, because
// some care must be taken to match them ("bind") with config field
// names.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		key, err := configKey(fieldName)
		if err != nil {
			return err
		}
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return err
		}
		if env, ok := configEnv[fieldName]; ok {
			return v.BindEnv(key, env)
		}
		return nil
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP := func(fieldName, flagName, short, def, desc string) {
		fs.StringP(flagName, short, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP("Listen", "listen", "l", "", "listen address where the API and /metrics will be served, e.g., :8080")

	// tools
	defineString("DockerHost", "docker-host", "", "docker daemon used to build and push images, e.g., tcp://docker:2375")
	defineString("RegistryAuth", "registry-auth", "", "encoded X-Registry-Auth value for pushes; by default the docker daemon's own credentials are used")
	defineString("GitSSHKey", "git-ssh-key", "", "private SSH key used to clone repositories; relative paths are taken from $HOME")
	defineString("Kubectl", "kubectl", "kubectl", "kubectl executable used to apply manifests")
	defineString("WorkspaceDir", "workspace-dir", pipeline.DefaultWorkspaceBase, "directory under which each job gets its own working directory")

	// admission
	defineString("PKIDir", "pki-dir", "", "directory of PEM-encoded RSA public keys; a request signed by any of them is accepted")
	defineInt("StatusCacheSize", "status-cache-size", 100, "number of recent job statuses to remember")

	// notifications
	defineString("SlackToken", "slack-token", "", "Slack API token")
	defineString("SlackChannel", "slack-channel", "", "Slack channel to post to")
	defineString("SlackUsername", "slack-username", "", "name to post as")
	defineString("SlackColorError", "slack-color-error", "", "attachment colour for error notifications")
	defineString("SlackColorPending", "slack-color-pending", "", "attachment colour for pending notifications")
	defineString("SlackColorSuccess", "slack-color-success", "", "attachment colour for success notifications")
	defineString("SlackURL", "slack-url", notify.DefaultSlackURL, "Slack chat.postMessage endpoint")
	defineFloat64("NotifyRate", "notify-rate", 1, "maximum notifications delivered per second")
}

// loadConfig reads the config file, if one is given, and returns the
// validated config.
func loadConfig(v *viper.Viper, configFile string) (Config, error) {
	var cfg Config
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decoding config")
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c Config) slackColors() map[notify.State]string {
	return map[notify.State]string{
		notify.StateError:   c.SlackColorError,
		notify.StatePending: c.SlackColorPending,
		notify.StateSuccess: c.SlackColorSuccess,
	}
}
