package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoadOrCreateReturnsUnsavedDefault(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithProfileDir(dir))
	require.NoError(t, err)

	p, existed, err := mgr.LoadOrCreate()
	require.NoError(t, err)
	assert.False(t, existed)
	assert.False(t, p.Onboarded())
	assert.Equal(t, "medium", p.RiskAppetite)
	_, err = uuid.Parse(p.UserID)
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "profile.json"))
	assert.True(t, os.IsNotExist(err), "profile must not be written before Save")
}

func TestManagerSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	mgr, err := NewManager(WithProfileDir(dir), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	p := mgr.NewProfile()
	p.Name = "Sam"
	p.RiskAppetite = "high"
	p.SessionCount = 2
	require.NoError(t, mgr.Save(&p))
	assert.Equal(t, fixed, p.UpdatedAt)

	loaded, existed, err := mgr.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, p.UserID, loaded.UserID)
	assert.Equal(t, "Sam", loaded.Name)
	assert.Equal(t, "high", loaded.RiskAppetite)
	assert.Equal(t, 2, loaded.SessionCount)
	assert.True(t, loaded.Onboarded())
}

func TestManagerWritesSnakeCaseFields(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithProfileDir(dir))
	require.NoError(t, err)

	p := mgr.NewProfile()
	p.Name = "Ada"
	require.NoError(t, mgr.Save(&p))

	data, err := os.ReadFile(mgr.Path())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"user_id", "name", "risk_appetite", "created_at", "updated_at", "session_count"} {
		assert.Contains(t, raw, key)
	}
}

func TestManagerRejectsCorruptProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.json"), []byte("{not json"), 0o644))

	mgr, err := NewManager(WithProfileDir(dir))
	require.NoError(t, err)

	_, _, err = mgr.LoadOrCreate()
	assert.Error(t, err)
}
