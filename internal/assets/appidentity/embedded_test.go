package appidentityassets

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// The embedded identity must stay parseable and keep the schema's nested
// `app:` shape with the fields the CLI reads at startup; a bad merge here
// breaks every command.
func TestEmbeddedIdentityParses(t *testing.T) {
	var doc struct {
		App struct {
			BinaryName  string `yaml:"binary_name"`
			Vendor      string `yaml:"vendor"`
			EnvPrefix   string `yaml:"env_prefix"`
			ConfigName  string `yaml:"config_name"`
			Description string `yaml:"description"`
		} `yaml:"app"`
		Metadata struct {
			TelemetryNamespace string `yaml:"telemetry_namespace"`
		} `yaml:"metadata"`
	}
	require.NoError(t, yaml.Unmarshal(YAML, &doc))

	require.Equal(t, "evalgate", doc.App.BinaryName)
	require.Equal(t, "evalgate", doc.App.Vendor)
	require.Equal(t, "evalgate", doc.App.ConfigName)
	require.Equal(t, "EVALGATE_", doc.App.EnvPrefix)
	require.NotEmpty(t, doc.App.Description)
	require.Equal(t, "evalgate", doc.Metadata.TelemetryNamespace)
}
