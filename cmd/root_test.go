package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/glowpath/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"assess", "alternatives", "serve", "crime"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "glowpath", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)
}

func TestAssessCommand_Flags(t *testing.T) {
	for _, name := range []string{"query", "radiance"} {
		flag := assessCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "assess should have --%s flag", name)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
	}
}

func TestAlternativesCommand_Flags(t *testing.T) {
	for _, name := range []string{"query", "radiance", "at", "radius"} {
		assert.NotNil(t, alternativesCmd.Flags().Lookup(name), "alternatives should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCrimeCommand_HasImport(t *testing.T) {
	var found bool
	for _, c := range crimeCmd.Commands() {
		if c.Name() == "import" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotNil(t, crimeImportCmd.Flags().Lookup("file"))
}

func TestWriteOutput(t *testing.T) {
	result := model.Result{VibeScore: 19, RiskLevel: model.RiskUnsafe, Classification: model.ClassUnsafe, CrimeBaseline: 80}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutput(&buf, "json", result))
		assert.Contains(t, buf.String(), `"vibe_score": 19`)
		assert.Contains(t, buf.String(), `"risk_level": "UNSAFE"`)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutput(&buf, "yaml", result))

		var got model.Result
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, result, got)
	})

	t.Run("yaml open status", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutput(&buf, "yaml", []model.PlaceCandidate{{Name: "B", OpenAtTime: model.OpenYes}}))
		assert.Contains(t, buf.String(), "open_at_time: open")
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, writeOutput(&buf, "xml", result))
		assert.Zero(t, buf.Len())
	})
}

func TestParseVisitTime(t *testing.T) {
	got, err := parseVisitTime("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseVisitTime("2026-03-13T23:00:00-04:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1773457200), got.Unix())

	_, err = parseVisitTime("friday night")
	assert.Error(t, err)
}
