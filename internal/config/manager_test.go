package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManagerInitialLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fallback.yaml"),
		[]byte("generic_materials: [Nickel]\n"), 0644))

	m, err := NewManager(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	cfg, ok := m.GetConfig("fallback.yaml")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"Nickel"}, cfg["generic_materials"])
}

func TestManagerRequiresDirectory(t *testing.T) {
	_, err := NewManager("", zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestManagerSetConfigNotifiesHandlers(t *testing.T) {
	m, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	events := make(chan ChangeEvent, 1)
	m.RegisterHandler("tables.yaml", func(ev ChangeEvent) error {
		events <- ev
		return nil
	})

	require.NoError(t, m.SetConfig("tables.yaml", map[string]interface{}{"key": "value"}))

	select {
	case ev := <-events:
		assert.Equal(t, "tables.yaml", ev.File)
		assert.Equal(t, "programmatic_set", ev.Action)
		assert.Equal(t, "value", ev.Config["key"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not notified")
	}
}

func TestManagerValidatorRejects(t *testing.T) {
	m, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	m.RegisterValidator("tables.yaml", func(cfg map[string]interface{}) error {
		if _, ok := cfg["required"]; !ok {
			return fmt.Errorf("missing required key")
		}
		return nil
	})

	err = m.SetConfig("tables.yaml", map[string]interface{}{"other": true})
	require.Error(t, err)
	_, ok := m.GetConfig("tables.yaml")
	assert.False(t, ok)

	require.NoError(t, m.SetConfig("tables.yaml", map[string]interface{}{"required": true}))
	_, ok = m.GetConfig("tables.yaml")
	assert.True(t, ok)
}

func TestManagerGetConfigReturnsCopy(t *testing.T) {
	m, err := NewManager(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, m.SetConfig("tables.yaml", map[string]interface{}{"key": "original"}))

	cfg, ok := m.GetConfig("tables.yaml")
	require.True(t, ok)
	cfg["key"] = "mutated"

	again, _ := m.GetConfig("tables.yaml")
	assert.Equal(t, "original", again["key"])
}
