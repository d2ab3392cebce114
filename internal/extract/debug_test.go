package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSidecar(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	unitPath := filepath.Join(dir, "parser.unit")
	require.NoError(t, os.WriteFile(unitPath, []byte("unit payload"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parser.sym"), []byte(content), 0o644))
	return unitPath
}

func TestOpenDebugTable_Sidecar(t *testing.T) {
	unitPath := writeSidecar(t, "Parse:\n  file: parser.cs\n  line: 42\n")

	tbl, err := OpenDebugTable(unitPath)
	require.NoError(t, err)
	require.NotNil(t, tbl)

	pos, ok := tbl.Position("Parse")
	require.True(t, ok)
	assert.Equal(t, SourcePosition{File: "parser.cs", Line: 42}, pos)

	_, ok = tbl.Position("Missing")
	assert.False(t, ok)

	// Close releases the table; Position stops answering, a second Close
	// is fine.
	require.NoError(t, tbl.Close())
	_, ok = tbl.Position("Parse")
	assert.False(t, ok)
	require.NoError(t, tbl.Close())
}

func TestOpenDebugTable_MissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	unitPath := filepath.Join(dir, "parser.unit")
	require.NoError(t, os.WriteFile(unitPath, []byte("unit payload"), 0o644))

	tbl, err := OpenDebugTable(unitPath)
	require.NoError(t, err)
	assert.Nil(t, tbl)
}

func TestOpenDebugTable_MalformedSidecar(t *testing.T) {
	unitPath := writeSidecar(t, ":\tnot yaml {{{")

	tbl, err := OpenDebugTable(unitPath)
	assert.Error(t, err)
	assert.Nil(t, tbl)
}

func TestNewLazyExtractor_OpensSidecarFromUnitLocation(t *testing.T) {
	unit := parserUnit()
	unit.Location = writeSidecar(t, "Parse:\n  file: parser.cs\n  line: 7\n")

	e, err := NewLazyExtractor(unit)
	require.NoError(t, err)
	require.NotNil(t, e.debug)

	pos, ok := e.debug.Position("Parse")
	require.True(t, ok)
	assert.Equal(t, 7, pos.Line)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}

func TestNewLazyExtractor_MalformedSidecarFailsConstruction(t *testing.T) {
	unit := parserUnit()
	unit.Location = writeSidecar(t, "{{{")

	_, err := NewLazyExtractor(unit)
	assert.Error(t, err)
}

func TestNewLazyExtractor_WithDebugTableDisablesSidecar(t *testing.T) {
	unit := parserUnit()
	// A malformed sidecar exists, but the option bypasses it.
	unit.Location = writeSidecar(t, "{{{")

	e, err := NewLazyExtractor(unit, WithDebugTable(nil))
	require.NoError(t, err)
	assert.Nil(t, e.debug)

	contract, err := e.GetRoutineContract(parseRefIn(unit))
	require.NoError(t, err)
	assert.NotNil(t, contract)
}
