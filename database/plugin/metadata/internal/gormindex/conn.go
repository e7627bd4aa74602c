// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gormindex

import (
	"strings"
	"sync"

	"github.com/blinklabs-io/vedao/database/plugin"
)

// Conn describes how to reach a networked index server. A non-empty DSN
// takes precedence over the individual fields
type Conn struct {
	Host     string
	Port     uint
	User     string
	Password string
	Database string
	TLSMode  string
	TimeZone string
	DSN      string
}

// WithDefaults returns c with every zero field taken from def. Password and
// DSN are never defaulted
func (c Conn) WithDefaults(def Conn) Conn {
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.User == "" {
		c.User = def.User
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.TLSMode == "" {
		c.TLSMode = def.TLSMode
	}
	if c.TimeZone == "" {
		c.TimeZone = def.TimeZone
	}
	c.DSN = strings.TrimSpace(c.DSN)
	return c
}

// ConnFlags collects Conn values from plugin options
type ConnFlags struct {
	mu       sync.RWMutex
	host     string
	port     uint64
	user     string
	password string
	database string
	tlsMode  string
	timeZone string
	dsn      string
}

// NewConnFlags returns flags preset to def
func NewConnFlags(def Conn) *ConnFlags {
	return &ConnFlags{
		host:     def.Host,
		port:     uint64(def.Port),
		user:     def.User,
		database: def.Database,
		tlsMode:  def.TLSMode,
		timeZone: def.TimeZone,
	}
}

// Conn returns a snapshot of the collected values
func (f *ConnFlags) Conn() Conn {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Conn{
		Host:     f.host,
		Port:     uint(f.port),
		User:     f.user,
		Password: f.password,
		Database: f.database,
		TLSMode:  f.tlsMode,
		TimeZone: f.timeZone,
		DSN:      f.dsn,
	}
}

// Options returns the plugin options writing into f. label prefixes the
// descriptions. When envPrefix is set each option also reads the
// <envPrefix>_<NAME> environment variable
func (f *ConnFlags) Options(
	label string,
	envPrefix string,
	def Conn,
	tlsHelp string,
) []plugin.PluginOption {
	env := func(name string) string {
		if envPrefix == "" {
			return ""
		}
		return envPrefix + "_" + name
	}
	return []plugin.PluginOption{
		{
			Name:         "host",
			Type:         plugin.PluginOptionTypeString,
			Description:  label + " host",
			DefaultValue: def.Host,
			CustomEnvVar: env("HOST"),
			Dest:         &(f.host),
		},
		{
			Name:         "port",
			Type:         plugin.PluginOptionTypeUint,
			Description:  label + " port",
			DefaultValue: uint64(def.Port),
			CustomEnvVar: env("PORT"),
			Dest:         &(f.port),
		},
		{
			Name:         "user",
			Type:         plugin.PluginOptionTypeString,
			Description:  label + " user",
			DefaultValue: def.User,
			CustomEnvVar: env("USER"),
			Dest:         &(f.user),
		},
		{
			Name:         "password",
			Type:         plugin.PluginOptionTypeString,
			Description:  label + " password (required)",
			DefaultValue: "",
			CustomEnvVar: env("PASSWORD"),
			Dest:         &(f.password),
		},
		{
			Name:         "database",
			Type:         plugin.PluginOptionTypeString,
			Description:  label + " database name",
			DefaultValue: def.Database,
			CustomEnvVar: env("DATABASE"),
			Dest:         &(f.database),
		},
		{
			Name:         "ssl-mode",
			Type:         plugin.PluginOptionTypeString,
			Description:  tlsHelp,
			DefaultValue: def.TLSMode,
			CustomEnvVar: env("SSLMODE"),
			Dest:         &(f.tlsMode),
		},
		{
			Name:         "timezone",
			Type:         plugin.PluginOptionTypeString,
			Description:  label + " time zone",
			DefaultValue: def.TimeZone,
			CustomEnvVar: env("TIMEZONE"),
			Dest:         &(f.timeZone),
		},
		{
			Name:         "dsn",
			Type:         plugin.PluginOptionTypeString,
			Description:  "Full " + label + " DSN (overrides other options when set)",
			DefaultValue: "",
			CustomEnvVar: env("DSN"),
			Dest:         &(f.dsn),
		},
	}
}
