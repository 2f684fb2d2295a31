package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration so both "30m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from a zero value.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	EditWindow                   *timex.Duration `json:"edit_window"`
	LogLevel                     string          `json:"log_level"`
	EnforceSendMembership        *bool           `json:"enforce_send_membership"`
	ProtectPrivateMembership     *bool           `json:"protect_private_membership"`
	DefaultPageSize              *int            `json:"default_page_size"`
	MaxPageSize                  *int            `json:"max_page_size"`
	ShutdownTimeout              *timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays values found in the JSON file at path onto config.
// An empty path means no file was requested. Fields missing from the file
// keep their current value. Unreadable files or invalid JSON panic.
func parseJson(config *Config, path string) {
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.EditWindow != nil {
		config.EditWindow = c.EditWindow.Duration
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.EnforceSendMembership != nil {
		config.EnforceSendMembership = *c.EnforceSendMembership
	}
	if c.ProtectPrivateMembership != nil {
		config.ProtectPrivateMembership = *c.ProtectPrivateMembership
	}
	if c.DefaultPageSize != nil {
		config.DefaultPageSize = *c.DefaultPageSize
	}
	if c.MaxPageSize != nil {
		config.MaxPageSize = *c.MaxPageSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
