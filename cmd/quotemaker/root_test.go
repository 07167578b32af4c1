package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DefaultCommandMakesImage(t *testing.T) {
	srv, _ := newPhotoServer(t)
	config, dir := testConfig(t, srv.URL)
	cfgPath := writeConfig(t, config, dir)

	stdout, stderr, err := runCLI(t, "--config", cfgPath)
	require.NoError(t, err, stderr)

	path := strings.TrimSpace(stdout)
	assert.Equal(t, config.Output.Dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".jpeg"), path)
	assert.FileExists(t, path)

	assert.Contains(t, stderr, "Could not find model")
	assert.Contains(t, stderr, "Quote image created")
	assert.Contains(t, stderr, `"run_id"`)
}

func TestRun_MakeFlags(t *testing.T) {
	srv, _ := newPhotoServer(t)
	config, dir := testConfig(t, srv.URL)
	cfgPath := writeConfig(t, config, dir)
	out := filepath.Join(dir, "real")

	stdout, stderr, err := runCLI(t, "make", "--config", cfgPath, "--real", "--author-mode", "quote", "--output-dir", out)
	require.NoError(t, err, stderr)
	assert.Equal(t, out, filepath.Dir(strings.TrimSpace(stdout)))
	assert.Contains(t, stderr, "Steve Jobs")
}

func TestRun_Sentence(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	cfgPath := writeConfig(t, config, dir)

	stdout, stderr, err := runCLI(t, "sentence", "--config", cfgPath, "-n", "3")
	require.NoError(t, err, stderr)
	got := lines(stdout)
	require.Len(t, got, 3)
	for _, s := range got {
		assert.NotEmpty(t, s)
	}

	stdout, stderr, err = runCLI(t, "sentence", "--config", cfgPath, "--start", "The only")
	require.NoError(t, err, stderr)
	assert.True(t, strings.HasPrefix(stdout, "The only way"), stdout)
}

func TestRun_TrainAndModelCommands(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	cfgPath := writeConfig(t, config, dir)

	stdout, stderr, err := runCLI(t, "train", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `trained model "quotes"`)

	stdout, stderr, err = runCLI(t, "model", "stats", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "MODEL")
	assert.Contains(t, stdout, "quotes")

	export := filepath.Join(dir, "export.json")
	_, stderr, err = runCLI(t, "model", "export", export, "--config", cfgPath)
	require.NoError(t, err, stderr)
	data, err := os.ReadFile(export)
	require.NoError(t, err)
	var exported struct {
		Name      string   `json:"name"`
		StateSize int      `json:"state_size"`
		Sentences []string `json:"sentences"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, "quotes", exported.Name)
	assert.Equal(t, 2, exported.StateSize)
	assert.Len(t, exported.Sentences, 5)

	stdout, stderr, err = runCLI(t, "model", "remove", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `removed model "quotes"`)

	_, _, err = runCLI(t, "model", "export", "--config", cfgPath)
	require.Error(t, err)

	stdout, stderr, err = runCLI(t, "model", "import", export, "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `imported model "quotes"`)

	stdout, stderr, err = runCLI(t, "model", "export", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.JSONEq(t, string(data), stdout)

	stdout, stderr, err = runCLI(t, "model", "prune", "--min", "1", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "removed ")

	_, _, err = runCLI(t, "model", "prune", "--min", "0", "--config", cfgPath)
	require.Error(t, err)
}

func TestRun_ModelFlagAndEnv(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	cfgPath := writeConfig(t, config, dir)

	_, stderr, err := runCLI(t, "train", "--config", cfgPath, "--model", "flagged")
	require.NoError(t, err, stderr)

	t.Setenv("QUOTEMAKER_MARKOV_MODEL_NAME", "from_env")
	_, stderr, err = runCLI(t, "train", "--config", cfgPath)
	require.NoError(t, err, stderr)

	stdout, stderr, err := runCLI(t, "model", "stats", "--config", cfgPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "flagged")
	assert.Contains(t, stdout, "from_env")
	assert.NotContains(t, stdout, "quotes ")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	config, dir := testConfig(t, "http://127.0.0.1:1")
	cfgPath := writeConfig(t, config, dir)

	_, _, err := runCLI(t, "sentence", "--config", cfgPath, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level must be one of")
}

func TestRun_VersionSkipsSetup(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")

	stdout, _, err := runCLI(t, "version", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "quotemaker dev (commit none, built unknown)\n", stdout)
	assert.NoFileExists(t, cfgPath)
}
