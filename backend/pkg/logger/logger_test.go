package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func restore(t *testing.T) {
	t.Helper()
	mu.RLock()
	prevRoot, prevLevel := root, level
	mu.RUnlock()
	t.Cleanup(func() {
		mu.Lock()
		root, level = prevRoot, prevLevel
		mu.Unlock()
	})
}

func TestNew_LevelDefaultsByEnv(t *testing.T) {
	_, lvl, err := New(Options{Env: "production"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl.Level())

	_, lvl, err = New(Options{Env: "development"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl.Level())
}

func TestNew_LevelOverride(t *testing.T) {
	log, lvl, err := New(Options{Env: "production", Level: "WARN"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl.Level())
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestGet_NopBeforeInit(t *testing.T) {
	restore(t)
	mu.Lock()
	root = nil
	mu.Unlock()

	assert.NotNil(t, Get())
	assert.NotPanics(t, func() { For("records").Info("dropped") })
}

func TestInit_ComponentLoggers(t *testing.T) {
	restore(t)
	require.NoError(t, Init(Options{Env: "development", Level: "error"}))

	assert.Equal(t, zapcore.ErrorLevel, Level())
	assert.Equal(t, "persinteret", Get().Name())
	assert.Equal(t, "persinteret.registry", For("registry").Name())
}
