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

package plugin_test

import (
	"strings"
	"testing"

	"github.com/blinklabs-io/vedao/database/plugin"
	_ "github.com/blinklabs-io/vedao/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/sqlite"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct{}

func (m *mockPlugin) Start() error { return nil }
func (m *mockPlugin) Stop() error  { return nil }

func entryNames(entries []plugin.PluginEntry) []string {
	ret := make([]string, 0, len(entries))
	for _, entry := range entries {
		ret = append(ret, entry.Name)
	}
	return ret
}

func TestRegistryLookup(t *testing.T) {
	blobName := "blob-" + t.Name()
	metaName := "meta-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               blobName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               metaName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})

	blobNames := entryNames(plugin.GetPlugins(plugin.PluginTypeBlob))
	metaNames := entryNames(plugin.GetPlugins(plugin.PluginTypeMetadata))
	assert.Contains(t, blobNames, blobName)
	assert.NotContains(t, blobNames, metaName)
	assert.Contains(t, metaNames, metaName)
	assert.NotContains(t, metaNames, blobName)

	testDefs := []struct {
		pluginType plugin.PluginType
		name       string
		found      bool
	}{
		{pluginType: plugin.PluginTypeBlob, name: blobName, found: true},
		{pluginType: plugin.PluginTypeMetadata, name: metaName, found: true},
		{pluginType: plugin.PluginTypeMetadata, name: blobName, found: false},
		{pluginType: plugin.PluginTypeBlob, name: "missing-" + t.Name(), found: false},
	}
	for _, testDef := range testDefs {
		p := plugin.GetPlugin(testDef.pluginType, testDef.name)
		if !testDef.found {
			assert.Nil(t, p, testDef.name)
			continue
		}
		assert.IsType(t, &mockPlugin{}, p, testDef.name)
	}
}

func TestBuiltinPlugins(t *testing.T) {
	assert.Subset(
		t,
		entryNames(plugin.GetPlugins(plugin.PluginTypeBlob)),
		[]string{"badger"},
	)
	assert.Subset(
		t,
		entryNames(plugin.GetPlugins(plugin.PluginTypeMetadata)),
		[]string{"sqlite", "postgres", "mysql"},
	)
	assert.Equal(t, "blob", plugin.PluginTypeName(plugin.PluginTypeBlob))
	assert.Equal(t, "metadata", plugin.PluginTypeName(plugin.PluginTypeMetadata))
	assert.Empty(t, plugin.PluginTypeName(plugin.PluginType(99)))
}

func TestPopulateCmdlineOptions(t *testing.T) {
	name, dests := registerOptionPlugin(t)
	fs := pflag.NewFlagSet("vedao", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))

	prefix := "blob-" + name + "-"
	for _, flagName := range []string{"data-dir", "cache-size", "gc", "workers"} {
		require.NotNil(t, fs.Lookup(prefix+flagName), flagName)
	}
	assert.NotNil(t, fs.Lookup("metadata-sqlite-vacuum-hours"))
	assert.NotNil(t, fs.Lookup("metadata-postgres-dsn"))

	require.NoError(t, fs.Parse([]string{
		"--" + prefix + "data-dir", "/srv/vedao",
		"--" + prefix + "cache-size", "2048",
		"--" + prefix + "gc=false",
		"--" + prefix + "workers", "8",
	}))
	assert.Equal(t, "/srv/vedao", dests.dataDir)
	assert.Equal(t, uint64(2048), dests.cacheSize)
	assert.False(t, dests.gc)
	assert.Equal(t, 8, dests.workers)
}

func TestProcessEnvVarsCustomName(t *testing.T) {
	var host string
	name := "custom-env-" + t.Name()
	customEnv := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_HOST"
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "host",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: "localhost",
				CustomEnvVar: customEnv,
				Dest:         &host,
			},
		},
	})
	t.Setenv(customEnv, "db.internal")
	require.NoError(t, plugin.ProcessEnvVars("VEDAO"))
	assert.Equal(t, "db.internal", host)

	generated := strings.ToUpper(
		strings.ReplaceAll("VEDAO_METADATA_"+name+"_HOST", "-", "_"),
	)
	t.Setenv(generated, "db.primary")
	require.NoError(t, plugin.ProcessEnvVars("VEDAO"))
	assert.Equal(t, "db.primary", host, "generated name wins over the custom one")
}
