package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "grafter", configBaseName)
	assert.Equal(t, "grafter.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "repair.generations", generationsConfigKey)
	assert.Equal(t, "repair.population", populationConfigKey)
	assert.Equal(t, "repair.seed", seedConfigKey)
	assert.Equal(t, "repair.formula", formulaConfigKey)
	assert.Equal(t, "run.parallel", runParallelConfigKey)
	assert.Equal(t, "run.timeout", timeoutConfigKey)
	assert.Equal(t, "run.build_timeout", buildTimeoutConfigKey)
	assert.Equal(t, "store.path", storePathConfigKey)
	assert.Equal(t, "metrics.addr", metricsAddrConfigKey)
	assert.Equal(t, "GRAFTER", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestConfigDefaults(t *testing.T) {
	assert.Equal(t, 10, viper.GetInt(generationsConfigKey))
	assert.Equal(t, 0, viper.GetInt(populationConfigKey))
	assert.Equal(t, int64(-1), viper.GetInt64(seedConfigKey))
	assert.Equal(t, "jaccard", viper.GetString(formulaConfigKey))
	assert.Equal(t, time.Second, seconds(timeoutConfigKey))
	assert.Equal(t, time.Minute, seconds(buildTimeoutConfigKey))
	assert.Equal(t, ".grafter/runs.db", viper.GetString(storePathConfigKey))
	assert.Empty(t, viper.GetString(metricsAddrConfigKey))
}

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("GRAFTER_REPAIR_GENERATIONS", "25")

	assert.Equal(t, 25, viper.GetInt(generationsConfigKey))
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}
