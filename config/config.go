/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config reads the connector's recognized configuration keys
// from file/env with github.com/spf13/viper, watches the file for changes
// with github.com/fsnotify/fsnotify, decodes them into connector.Config
// through a github.com/go-viper/mapstructure/v2 decode hook, and
// validates the result with github.com/go-playground/validator/v10. The
// core packages never import this package: they take the populated
// connector.Config struct and nothing else.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sabouaram/connector"
	"github.com/sabouaram/connector/file/perm"
)

// Keys are the recognized external configuration keys, used both as
// viper lookup keys and as struct tags on Raw.
const (
	KeyConnectionPipe     = "connection-pipe"
	KeyInputPipePrefix    = "input-pipe-prefix"
	KeyOutputPipePrefix   = "output-pipe-prefix"
	KeyMaxPipeAttempts    = "max-pipe-attempts"
	KeyConnectTimeoutMs   = "connect-timeout-ms"
	KeySendTimeoutMs      = "send-timeout-ms"
	KeyHeartbeatTimeoutMs = "heartbeat-timeout-ms"
	KeyServiceName        = "service-name"
	KeyServiceExecutable  = "service-executable"
	KeyServicePollMs      = "service-poll-ms"
	KeyStartTimeoutMs     = "start-timeout-ms"
	KeyStopTimeoutMs      = "stop-timeout-ms"
	KeyLogConfiguration   = "log-configuration"
	KeyDisplayAlerts      = "display-alerts"
)

// Raw is the on-disk/env shape of the recognized keys, validated before
// being translated into connector.Config.
type Raw struct {
	ConnectionPipe     string `mapstructure:"connection-pipe" validate:"required"`
	InputPipePrefix    string `mapstructure:"input-pipe-prefix" validate:"required"`
	OutputPipePrefix   string `mapstructure:"output-pipe-prefix" validate:"required"`
	MaxPipeAttempts    int    `mapstructure:"max-pipe-attempts" validate:"gte=0"`
	ConnectTimeoutMs   int    `mapstructure:"connect-timeout-ms" validate:"gte=0"`
	SendTimeoutMs      int    `mapstructure:"send-timeout-ms" validate:"gte=0"`
	HeartbeatTimeoutMs int    `mapstructure:"heartbeat-timeout-ms" validate:"gte=0"`

	ServiceName       string `mapstructure:"service-name"`
	ServiceExecutable string `mapstructure:"service-executable"`
	ServicePollMs     int    `mapstructure:"service-poll-ms" validate:"gte=0"`
	StartTimeoutMs    int    `mapstructure:"start-timeout-ms" validate:"gte=0"`
	StopTimeoutMs     int    `mapstructure:"stop-timeout-ms" validate:"gte=0"`

	LogConfiguration string `mapstructure:"log-configuration"`
	DisplayAlerts    bool   `mapstructure:"display-alerts"`

	SocketPermissions string `mapstructure:"socket_permissions"`

	LanguageID string `mapstructure:"language-id"`
	UserName   string `mapstructure:"user-name"`
	Debug      bool   `mapstructure:"debug"`
}

// Loader reads and validates connector configuration from a viper
// instance, watching the backing file for changes.
type Loader struct {
	v *viper.Viper
	d *validator.Validate
}

// New creates a Loader. path is the config file (any format viper
// supports: yaml, json, toml, ...); envPrefix, if non-empty, lets every
// key also be set via PREFIX_KEY-WITH-DASHES-AS-UNDERSCORES env vars.
func New(path, envPrefix string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return &Loader{v: v, d: validator.New()}, nil
}

// OnChange registers fn to run every time the backing config file
// changes on disk, via viper's fsnotify-backed watcher.
func (l *Loader) OnChange(fn func()) {
	l.v.OnConfigChange(func(_ fsnotify.Event) { fn() })
	l.v.WatchConfig()
}

// Load decodes and validates the current configuration into a
// connector.Config, applying perm.ViperDecoderHook so socket_permissions
// parses the same octal/symbolic shapes file/perm accepts elsewhere in
// this codebase.
func (l *Loader) Load() (connector.Config, error) {
	var raw Raw
	hook := viper.DecodeHook(perm.ViperDecoderHook())
	if err := l.v.Unmarshal(&raw, hook); err != nil {
		return connector.Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := l.d.Struct(raw); err != nil {
		return connector.Config{}, fmt.Errorf("config: validate: %w", err)
	}

	socketPerm, err := perm.Parse(defaultIfEmpty(raw.SocketPermissions, "0600"))
	if err != nil {
		return connector.Config{}, fmt.Errorf("config: socket_permissions: %w", err)
	}

	return connector.Config{
		ConnectionPipe:     raw.ConnectionPipe,
		InputPipePrefix:    raw.InputPipePrefix,
		OutputPipePrefix:   raw.OutputPipePrefix,
		MaxPipeAttempts:    raw.MaxPipeAttempts,
		ConnectTimeoutMs:   raw.ConnectTimeoutMs,
		SendTimeoutMs:      raw.SendTimeoutMs,
		HeartbeatTimeoutMs: raw.HeartbeatTimeoutMs,
		ServiceName:        raw.ServiceName,
		ServiceExecutable:  raw.ServiceExecutable,
		ServicePollMs:      raw.ServicePollMs,
		StartTimeoutMs:     raw.StartTimeoutMs,
		StopTimeoutMs:      raw.StopTimeoutMs,
		LogConfiguration:   raw.LogConfiguration,
		DisplayAlerts:      raw.DisplayAlerts,
		LanguageID:         raw.LanguageID,
		UserName:           raw.UserName,
		Debug:              raw.Debug,
		SocketPerm:         socketPerm,
	}, nil
}

func defaultIfEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
