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

package mysql

import (
	"github.com/blinklabs-io/vedao/database/plugin"
	"github.com/blinklabs-io/vedao/database/plugin/metadata/internal/gormindex"
)

var (
	defaultConn = gormindex.Conn{
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Database: "vedao",
		TimeZone: "UTC",
	}
	cmdlineOptions = gormindex.NewConnFlags(defaultConn)
)

// Register plugin
func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "mysql",
			Description:        "MySQL governance index",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: cmdlineOptions.Options(
				"MySQL",
				"MYSQL",
				defaultConn,
				"MySQL TLS mode (mapped to tls= in DSN)",
			),
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	return NewWithOptions(WithConn(cmdlineOptions.Conn()))
}
