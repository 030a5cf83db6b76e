package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
routing:
  strong_model: gpt4
  weak_model: llama
  threshold: 0.5
  default_router: random
routers:
  random:
    seed: 7
logging:
  level: error
`

const testBattles = `{"model_a": "gpt4", "model_b": "llama", "winner": "model_a"}
{"model_a": "gpt4", "model_b": "llama", "winner": "model_a"}
{"model_a": "llama", "model_b": "gpt4", "winner": "model_b"}
{"model_a": "mixtral", "model_b": "llama", "winner": "tie"}
{"model_a": "gpt4", "model_b": "mixtral", "winner": "model_a"}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRouteCommand(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", testConfig)

	out, err := run(t, "", "--config", cfg, "route", "--threshold", "0", "hello", "world")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "strong", res["routed_to"])
	assert.Equal(t, "gpt4", res["model"])

	out, err = run(t, "", "--config", cfg, "route", "--model", "router-random-1", "hi")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "llama", res["model"])
}

func TestRouteCommand_UnknownRouter(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", testConfig)
	_, err := run(t, "", "--config", cfg, "route", "--router", "oracle", "hi")
	assert.Error(t, err)
}

func TestRatingsCommand(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", testConfig)
	battles := writeTemp(t, "battles.jsonl", testBattles)

	out, err := run(t, "", "--config", cfg, "ratings", "--battles", battles, "--tiers", "2", "--json")
	require.NoError(t, err)

	var rows []struct {
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
		Tier   string  `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "gpt4", rows[0].Name)
	assert.Equal(t, "tier-0", rows[0].Tier)
	assert.Equal(t, "tier-1", rows[2].Tier)

	out, err = run(t, "", "--config", cfg, "ratings", "--battles", battles, "--tiers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL")
	assert.Contains(t, out, "gpt4")
	assert.Contains(t, out, "5 battles, 3 models, 2 tiers")
}

func TestRatingsCommand_NoDataset(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", testConfig)
	_, err := run(t, "", "--config", cfg, "ratings")
	assert.Error(t, err)
}

func TestCalibrateCommand(t *testing.T) {
	cfg := writeTemp(t, "config.yaml", testConfig)
	var prompts strings.Builder
	for i := 0; i < 40; i++ {
		prompts.WriteString("prompt\n\n")
	}

	out, err := run(t, prompts.String(), "--config", cfg, "calibrate", "--strong-fraction", "0.25", "-")
	require.NoError(t, err)

	var c calibration
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "random", c.Router)
	assert.Equal(t, 40, c.Prompts)
	assert.Zero(t, c.Failed)
	assert.GreaterOrEqual(t, c.Threshold, 0.0)
	assert.LessOrEqual(t, c.Threshold, 1.0)
	assert.True(t, strings.HasPrefix(c.Model, "router-random-"))
}

func TestReadPrompts(t *testing.T) {
	path := writeTemp(t, "prompts.txt", "first\n\n  second  \n")
	prompts, err := readPrompts(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, prompts)
}

func TestIntParam(t *testing.T) {
	for _, v := range []any{3, int64(3), float64(3)} {
		n, ok := intParam(v)
		assert.True(t, ok)
		assert.Equal(t, 3, n)
	}
	_, ok := intParam(2.5)
	assert.False(t, ok)
	_, ok = intParam("3")
	assert.False(t, ok)
}
