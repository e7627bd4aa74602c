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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return ""
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	CustomEnvVar string
	Type         PluginOptionType
}

type PluginEntry struct {
	NewFromOptionsFunc func() Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var pluginEntries []PluginEntry

// Register adds a plugin to the registry. Plugins register themselves from
// their package init()
func Register(pluginEntry PluginEntry) {
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registry entries for the given plugin type
func GetPlugins(pluginType PluginType) []PluginEntry {
	ret := []PluginEntry{}
	for _, entry := range pluginEntries {
		if entry.Type == pluginType {
			ret = append(ret, entry)
		}
	}
	return ret
}

// GetPlugin builds a new instance of the named plugin from its current options
func GetPlugin(pluginType PluginType, name string) Plugin {
	for _, entry := range pluginEntries {
		if entry.Type == pluginType && entry.Name == name {
			return entry.NewFromOptionsFunc()
		}
	}
	return nil
}

func optionFlagName(entry PluginEntry, opt PluginOption) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(entry.Type),
		entry.Name,
		opt.Name,
	)
}

// PopulateCmdlineOptions adds a flag for every registered plugin option,
// named <type>-<plugin>-<option>, bound directly to the option destination
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			flagName := optionFlagName(entry, opt)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf("option %s: destination is not *string", flagName)
				}
				defVal, _ := opt.DefaultValue.(string)
				fs.StringVar(dest, flagName, defVal, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf("option %s: destination is not *bool", flagName)
				}
				defVal, _ := opt.DefaultValue.(bool)
				fs.BoolVar(dest, flagName, defVal, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf("option %s: destination is not *int", flagName)
				}
				defVal, _ := opt.DefaultValue.(int)
				fs.IntVar(dest, flagName, defVal, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf("option %s: destination is not *uint64", flagName)
				}
				defVal, _ := opt.DefaultValue.(uint64)
				fs.Uint64Var(dest, flagName, defVal, opt.Description)
			default:
				return fmt.Errorf("option %s: unknown option type %d", flagName, opt.Type)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file section. The map
// is keyed by plugin type name, then plugin name, then option name
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for typeName, plugins := range pluginConfig {
		var pluginType PluginType
		switch typeName {
		case PluginTypeName(PluginTypeBlob):
			pluginType = PluginTypeBlob
		case PluginTypeName(PluginTypeMetadata):
			pluginType = PluginTypeMetadata
		default:
			return fmt.Errorf("unknown plugin type: %s", typeName)
		}
		for pluginName, options := range plugins {
			for optName, value := range options {
				if err := SetPluginOption(pluginType, pluginName, optName, value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from environment variables named
// <PREFIX>_<TYPE>_<PLUGIN>_<OPTION>, with dashes mapped to underscores. An
// option's CustomEnvVar is consulted when the generated name is not set
func ProcessEnvVars(prefix string) error {
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			envName := strings.ToUpper(
				strings.ReplaceAll(
					fmt.Sprintf("%s_%s", prefix, optionFlagName(entry, opt)),
					"-",
					"_",
				),
			)
			envVal, ok := os.LookupEnv(envName)
			if !ok && opt.CustomEnvVar != "" {
				envName = opt.CustomEnvVar
				envVal, ok = os.LookupEnv(envName)
			}
			if !ok {
				continue
			}
			var value any
			switch opt.Type {
			case PluginOptionTypeString:
				value = envVal
			case PluginOptionTypeBool:
				tmpVal, err := strconv.ParseBool(envVal)
				if err != nil {
					return fmt.Errorf("%s: %w", envName, err)
				}
				value = tmpVal
			case PluginOptionTypeInt:
				tmpVal, err := strconv.Atoi(envVal)
				if err != nil {
					return fmt.Errorf("%s: %w", envName, err)
				}
				value = tmpVal
			case PluginOptionTypeUint:
				tmpVal, err := strconv.ParseUint(envVal, 10, 64)
				if err != nil {
					return fmt.Errorf("%s: %w", envName, err)
				}
				value = tmpVal
			}
			if err := opt.assign(value); err != nil {
				return err
			}
		}
	}
	return nil
}
