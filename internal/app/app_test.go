package app

import (
	"testing"

	"github.com/OFFIS-RIT/kgops/internal/config"
	"github.com/OFFIS-RIT/kgops/internal/testutil"
	pgxstore "github.com/OFFIS-RIT/kgops/pkg/store/pgx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWiresEveryService(t *testing.T) {
	cfg := config.Default()
	cfg.Migration.Parallel = true

	a, err := build(cfg, nil, pgxstore.NewStorage(nil), testutil.NewMemArtifacts(), &testutil.FakeAI{})
	require.NoError(t, err)

	assert.NotNil(t, a.Graph)
	assert.NotNil(t, a.Migration)
	assert.NotNil(t, a.Analytics)
	assert.NotNil(t, a.Training)
	assert.NotNil(t, a.FineTune)
	assert.NotNil(t, a.Validation)
	assert.NotNil(t, a.Transfer)
	assert.Equal(t, cfg.Training, a.Training.Defaults())
}

func TestPipelineConfigDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.FineTune.Epochs = 3
	cfg.Training.MaxSamples = 10
	a := &App{Config: cfg}

	p := a.PipelineConfig()
	assert.Equal(t, 100, p.MinInteractions)
	assert.Equal(t, 3, p.Submit.Epochs)
	assert.Equal(t, cfg.AI.FineTuneBaseModel, p.Submit.BaseModel)
	assert.Equal(t, 10, p.Training.MaxSamples)
}

func TestNewAIClient(t *testing.T) {
	for _, adapter := range []string{"openai", "ollama"} {
		t.Run(adapter, func(t *testing.T) {
			cfg := config.Default().AI
			cfg.Adapter = adapter
			client, err := NewAIClient(cfg)
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}
