package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Environment variable names
const (
	envAppEnv            = "APP_ENV"
	envAppServiceName    = "APP_SERVICE_NAME"
	envAppServiceVersion = "APP_SERVICE_VERSION"
	envConfigFile        = "CONFIG_FILE"
	envConfigDir         = "CONFIG_DIR"
)

const defaultConfigDir = "./configs"

// AppConfig carries service identity and points at the config file.
// All values come from environment variables; a .env file is loaded first
// if present.
type AppConfig struct {
	ConfigFile     string
	ServiceName    string
	ServiceVersion string
	Environment    Environment
}

// Environment represents the deployment environment.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "pro"
)

// IsValid checks if the environment value is valid.
func (e Environment) IsValid() bool {
	switch e {
	case EnvLocal, EnvStaging, EnvProduction:
		return true
	}
	return false
}

func (e Environment) String() string {
	return string(e)
}

// NewConfigModule provides AppConfig and *viper.Viper for dependency
// injection.
//
// Required environment variables:
//   - APP_ENV: local, staging, or pro
//   - APP_SERVICE_NAME: service name
//   - APP_SERVICE_VERSION: service version
//
// Optional:
//   - CONFIG_FILE: explicit path to the config file
//   - CONFIG_DIR: directory with config files (default ./configs)
func NewConfigModule() fx.Option {
	return fx.Module("config",
		fx.Provide(
			newAppConfig,
			newViper,
		),
		fx.Invoke(func(logger *zap.Logger, conf AppConfig, v *viper.Viper) {
			logger.Info("configuration loaded",
				zap.String("service", conf.ServiceName),
				zap.String("version", conf.ServiceVersion),
				zap.String("environment", conf.Environment.String()),
				zap.String("configFile", v.ConfigFileUsed()),
			)
		}),
	)
}

func newAppConfig() (AppConfig, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	env := Environment(os.Getenv(envAppEnv))
	if !env.IsValid() {
		return AppConfig{}, fmt.Errorf("invalid %s: %q", envAppEnv, env)
	}
	serviceName := os.Getenv(envAppServiceName)
	if serviceName == "" {
		return AppConfig{}, fmt.Errorf("%s is required", envAppServiceName)
	}
	serviceVersion := os.Getenv(envAppServiceVersion)
	if serviceVersion == "" {
		return AppConfig{}, fmt.Errorf("%s is required", envAppServiceVersion)
	}

	configFile := os.Getenv(envConfigFile)
	if configFile == "" {
		configDir := os.Getenv(envConfigDir)
		if configDir == "" {
			configDir = defaultConfigDir
		}
		configFile = filepath.Join(configDir, "config."+env.String()+".yaml")
	}

	return AppConfig{
		ConfigFile:     configFile,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    env,
	}, nil
}

func newViper(conf AppConfig) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetConfigFile(conf.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file [%s]: %w", conf.ConfigFile, err)
	}
	return v, nil
}
