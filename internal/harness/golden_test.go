package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserExtractScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/parser_extract.yaml")
	require.NoError(t, err)

	RunWithGolden(t, scenario)
}

func TestAggregateScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/aggregate_out_of_band.yaml")
	require.NoError(t, err)

	result := RunWithGolden(t, scenario)

	noop, ok := result.Routine("Parser.Noop")
	require.True(t, ok)
	assert.Equal(t, []string{"false"}, noop.Requires)
}

func TestSnapshotIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/parser_extract.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(first)
	require.NoError(t, err)
	b, err := Snapshot(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Snapshots stay valid JSON with the scenario name as the root key.
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a, &decoded))
	assert.Equal(t, "parser_extract", decoded["scenario"])
}
