package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/golive/pkg/artifacts"
)

func TestPublish_FileStore(t *testing.T) {
	isolateEnv(t)
	src := t.TempDir()
	storeDir := t.TempDir()
	a := writeFile(t, filepath.Join(src, "daily_manifest_2026-02-12.json"), `{"chain":[]}`)
	b := writeFile(t, filepath.Join(src, "evidence_bundle.sha256"), "abc")

	code, stdout, stderr := run(t, "publish", "--store-dir", storeDir, "--json", b, a)
	require.Equal(t, exitOK, code, stderr)

	var res artifacts.PublishResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "daily_manifest_2026-02-12.json", res.Artifacts[0].Name)
	assert.Equal(t, artifacts.Address([]byte(`{"chain":[]}`)), res.Artifacts[0].Address)

	s, err := artifacts.NewFileStore(storeDir)
	require.NoError(t, err)
	for _, addr := range []string{res.Index, res.Artifacts[0].Address, res.Artifacts[1].Address} {
		_, err := artifacts.GetVerified(context.Background(), s, addr)
		assert.NoError(t, err, addr)
	}
}

func TestPublish_Errors(t *testing.T) {
	isolateEnv(t)

	code, _, _ := run(t, "publish")
	assert.Equal(t, exitError, code)

	code, _, stderr := run(t, "publish", "--store", "tape", filepath.Join(t.TempDir(), "x"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "unsupported artifact storage type")
}
