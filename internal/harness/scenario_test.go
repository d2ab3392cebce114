package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/parser_extract.yaml")
	require.NoError(t, err)

	assert.Equal(t, "parser_extract", scenario.Name)
	require.Len(t, scenario.Units, 1)
	assert.Equal(t, filepath.Join("testdata", "units", "parser.cue"), scenario.Units[0].File)
	assert.Equal(t, []string{"Parser.Parse", "Parser.Noop"}, scenario.Routines)
	require.Len(t, scenario.Expect, 3)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
units:
  - cue: "name: \"U\""
routines: [T.R]
assertion: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestLoadScenarioValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "units: [{cue: 'name: \"U\"'}]\nroutines: [T.R]\n",
			want:    "name is required",
		},
		{
			name:    "no units",
			content: "name: x\nroutines: [T.R]\n",
			want:    "units list is required",
		},
		{
			name:    "unit with both sources",
			content: "name: x\nunits: [{file: a.cue, cue: 'name: \"U\"'}]\nroutines: [T.R]\n",
			want:    "exactly one of file or cue",
		},
		{
			name:    "nothing to query",
			content: "name: x\nunits: [{cue: 'name: \"U\"'}]\n",
			want:    "at least one routine or type",
		},
		{
			name:    "bad routine spec",
			content: "name: x\nunits: [{cue: 'name: \"U\"'}]\nroutines: [Parse]\n",
			want:    "not a Type.Routine spec",
		},
		{
			name:    "expectation without symbol",
			content: "name: x\nunits: [{cue: 'name: \"U\"'}]\nroutines: [T.R]\nexpect: [{has_contract: true}]\n",
			want:    "exactly one of routine or type",
		},
		{
			name:    "expectation on unqueried routine",
			content: "name: x\nunits: [{cue: 'name: \"U\"'}]\nroutines: [T.R]\nexpect: [{routine: T.Other, has_contract: true}]\n",
			want:    "not queried by this scenario",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
