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

package sqlite

import (
	"sync"
	"time"

	"github.com/blinklabs-io/vedao/database/plugin"
)

const (
	defaultDataDir     = ".vedao"
	defaultVacuumHours = 24
)

var (
	cmdlineOptions struct {
		dataDir     string
		vacuumHours uint64
	}
	cmdlineOptionsMutex sync.RWMutex
)

// Register plugin
func init() {
	cmdlineOptions.dataDir = defaultDataDir
	cmdlineOptions.vacuumHours = defaultVacuumHours
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "sqlite",
			Description:        "SQLite governance index",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for sqlite storage (empty for in-memory)",
					DefaultValue: defaultDataDir,
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "vacuum-hours",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Hours between VACUUM runs on the index file (0 disables)",
					DefaultValue: uint64(defaultVacuumHours),
					Dest:         &(cmdlineOptions.vacuumHours),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	dataDir := cmdlineOptions.dataDir
	vacuumHours := cmdlineOptions.vacuumHours
	cmdlineOptionsMutex.RUnlock()

	p, err := NewWithOptions(
		WithDataDir(dataDir),
		WithVacuumInterval(time.Duration(vacuumHours)*time.Hour),
	)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
