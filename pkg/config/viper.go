// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file and environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/logging"
)

// InitConfig initializes the application's configuration using Viper. It sets
// search paths and enables reading from environment variables. Designed to be
// called once at startup, before any command runs. An explicit cfgFile
// bypasses the search paths.
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/siteindex/")
		viper.AddConfigPath("$HOME/.siteindex")
	}

	// e.g. CEC_REMOTE_URL=https://host, CEC_REMOTE_TOKEN=...
	viper.SetEnvPrefix("CEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
