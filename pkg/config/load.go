// pkg/config/load.go

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// EnvPrefix prefixes every environment variable read by Load, e.g. HERMES_REPO.
const EnvPrefix = "HERMES"

// Keys lists every configuration key. Binding them explicitly makes
// HERMES_* variables visible to Unmarshal even without a matching flag.
var Keys = []string{
	"repo", "token", "branch", "user", "server", "key", "port", "ssh-port",
	"workspace", "remote-dir", "prune", "grace", "connect-timeout", "known-hosts",
}

// NewViper returns a viper instance bound to flags and HERMES_* variables.
// A config file is read when configFile is non-empty.
func NewViper(flags *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("branch", shared.DefaultBranch)
	v.SetDefault("port", shared.DefaultAppPort)
	v.SetDefault("ssh-port", shared.DefaultSSHPort)
	v.SetDefault("workspace", ".")
	v.SetDefault("grace", shared.DefaultStartupGrace)
	v.SetDefault("connect-timeout", shared.DefaultConnectTimeout)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, hermes_err.NewConfigError("failed to bind flags", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, hermes_err.NewConfigError("failed to read config file "+configFile, err)
		}
	}
	return v, nil
}

// Load decodes v into a DeploymentConfig and validates it.
func Load(v *viper.Viper) (DeploymentConfig, error) {
	var raw DeploymentConfig
	if err := v.Unmarshal(&raw); err != nil {
		return DeploymentConfig{}, hermes_err.NewConfigError("failed to decode configuration", err)
	}
	return New(raw)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return hermes_err.NewConfigError("failed to load "+path, err)
	}
	return nil
}
