package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisscool-fr/simdive/internal/model"
)

func testSession() *model.DiveSession {
	return &model.DiveSession{
		ProfileID:           "square-20m",
		ProfileName:         "Square 20m",
		StartTime:           time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		InitialTankPressure: 200,
		TankVolume:          12,
		SACRate:             20,
	}
}

func TestBackend_ExportsSessionJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(Config{OutputDir: dir})
	require.NoError(t, b.Init())

	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSnapshot(&model.SnapshotRecord{DiveTime: 1.0, Depth: 10}))
	require.NoError(t, b.RecordSnapshot(&model.SnapshotRecord{DiveTime: 2.0, Depth: 20}))
	require.NoError(t, b.RecordEvent(&model.EventRecord{DiveTime: 1.5, Type: "airSharingStart"}))
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "square-20m_20240601_103000.json"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export SessionExport
	require.NoError(t, json.NewDecoder(f).Decode(&export))
	assert.Equal(t, "square-20m", export.Session.ProfileID)
	assert.Len(t, export.Snapshots, 2)
	assert.Len(t, export.Events, 1)
	assert.Equal(t, 20.0, export.Snapshots[1].Depth)

	require.NoError(t, b.Close())
}

func TestBackend_ExportsCompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(Config{OutputDir: dir, CompressOutput: true})

	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSnapshot(&model.SnapshotRecord{DiveTime: 1.0, Depth: 10}))
	require.NoError(t, b.EndSession())

	path := b.GetExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export SessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Len(t, export.Snapshots, 1)
}

func TestBackend_RecordsBeforeSessionIgnored(t *testing.T) {
	b := New(Config{OutputDir: t.TempDir()})

	require.NoError(t, b.RecordSnapshot(&model.SnapshotRecord{Depth: 5}))
	require.NoError(t, b.RecordEvent(&model.EventRecord{Type: "airRateIncrease"}))
	assert.Equal(t, 0, b.SnapshotCount())

	// EndSession without a session is a no-op
	require.NoError(t, b.EndSession())
	assert.Empty(t, b.GetExportedFilePath())
}

func TestBackend_StartSessionDiscardsPreviousRecords(t *testing.T) {
	b := New(Config{OutputDir: t.TempDir()})

	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSnapshot(&model.SnapshotRecord{Depth: 5}))
	require.Equal(t, 1, b.SnapshotCount())

	require.NoError(t, b.StartSession(testSession()))
	assert.Equal(t, 0, b.SnapshotCount())
}

func TestBackend_SanitizesProfileID(t *testing.T) {
	dir := t.TempDir()
	b := New(Config{OutputDir: dir})

	session := testSession()
	session.ProfileID = "reef drift: v2"
	require.NoError(t, b.StartSession(session))
	require.NoError(t, b.EndSession())

	assert.Equal(t, filepath.Join(dir, "reef_drift__v2_20240601_103000.json"), b.GetExportedFilePath())
}
