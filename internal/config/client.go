package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client holds portalctl settings resolved from flags, PORTAL_* env vars and
// an optional config file.
type Client struct {
	URL                   string
	SessionFile           string
	NotificationTTL       time.Duration
	ExclusiveNotification bool
	RequestTimeout        time.Duration
	AssumeYes             bool
	Debug                 bool
}

// ClientDefaults registers the defaults portalctl falls back to.
func ClientDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("url", "http://localhost:8080")
	v.SetDefault("session_file", filepath.Join(home, ".portalctl", "session.yaml"))
	v.SetDefault("notification_ttl", 5*time.Second)
	v.SetDefault("exclusive_notifications", true)
	v.SetDefault("request_timeout", time.Duration(0))
	v.SetDefault("yes", false)
	v.SetDefault("debug", false)
}

// LoadClient resolves the client settings. A missing config file is not an
// error; a malformed one is.
func LoadClient(v *viper.Viper, configFile string) (Client, error) {
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".portalctl")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Client{}, err
		}
	}

	return Client{
		URL:                   strings.TrimRight(v.GetString("url"), "/"),
		SessionFile:           v.GetString("session_file"),
		NotificationTTL:       v.GetDuration("notification_ttl"),
		ExclusiveNotification: v.GetBool("exclusive_notifications"),
		RequestTimeout:        v.GetDuration("request_timeout"),
		AssumeYes:             v.GetBool("yes"),
		Debug:                 v.GetBool("debug"),
	}, nil
}
