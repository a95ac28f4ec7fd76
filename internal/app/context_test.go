package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/engine"
)

func TestOpenWiresWorkspace(t *testing.T) {
	for _, name := range APIKeyEnv {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	env, err := Open(context.Background(), Options{Workspace: dir})
	require.NoError(t, err)
	defer env.Close()

	assert.FileExists(t, db.Path(dir))
	assert.Equal(t, 1, env.SchemaVersion)
	assert.False(t, env.Engine.Provider.Enabled())

	res, err := env.Engine.CreateGoal(context.Background(), engine.GoalInput{
		Title: "Read", DailyMinutes: 20, StartDate: "2024-05-01", EndDate: "2024-05-04",
	})
	require.NoError(t, err)
	require.NoError(t, res.SynthesisErr)
	assert.Len(t, res.Tasks, 3)
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	yml := "provider:\n  kind: none\ngoals:\n  min_daily_minutes: 10\n  max_daily_minutes: 20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planline.yml"), []byte(yml), 0o644))

	env, err := Open(context.Background(), Options{Workspace: dir, APIKey: "sk-ignored"})
	require.NoError(t, err)
	defer env.Close()
	assert.Equal(t, config.ProviderNone, env.Config.Provider.Kind)
	assert.Equal(t, 20, env.Config.Goals.MaxDailyMinutes)

	_, err = env.Engine.CreateGoal(context.Background(), engine.GoalInput{
		Title: "Read", DailyMinutes: 30, StartDate: "2024-05-01", EndDate: "2024-05-02",
	})
	assert.ErrorIs(t, err, engine.ErrInvalidGoal)
}

func TestOpenWithKeyEnablesProvider(t *testing.T) {
	env, err := Open(context.Background(), Options{Workspace: t.TempDir(), APIKey: "sk-test"})
	require.NoError(t, err)
	defer env.Close()
	assert.True(t, env.Engine.Provider.Enabled())
	assert.Equal(t, "openai", env.Engine.Provider.Backend.Name())
}

func TestLookupAPIKeyOrder(t *testing.T) {
	t.Setenv("PLANLINE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "openai")
	t.Setenv("GEMINI_API_KEY", "gemini")
	assert.Equal(t, "openai", LookupAPIKey())
	t.Setenv("PLANLINE_API_KEY", "planline")
	assert.Equal(t, "planline", LookupAPIKey())
}
