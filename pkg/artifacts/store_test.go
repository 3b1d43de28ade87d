package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	addr, err := s.Store(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "sha256:"+digest.Bytes([]byte("hello")), addr)

	again, err := s.Store(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	ok, err := s.Exists(ctx, addr)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := GetVerified(ctx, s, addr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.Store(context.Background(), []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".blob"))
}

func TestFileStore_Missing(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	missing := Address([]byte("never stored"))
	ok, err := s.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_InvalidAddress(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, addr := range []string{"", "md5:abc", "sha256:xyz", "sha256:../../etc/passwd"} {
		_, err := s.Get(ctx, addr)
		assert.ErrorIs(t, err, ErrInvalidAddress, addr)
		_, err = s.Exists(ctx, addr)
		assert.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

func TestGetVerified_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	addr, err := s.Store(ctx, []byte("original"))
	require.NoError(t, err)
	blob := filepath.Join(dir, strings.TrimPrefix(addr, "sha256:")+".blob")
	require.NoError(t, os.WriteFile(blob, []byte("tampered"), 0o600))

	_, err = GetVerified(ctx, s, addr)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	manifest := filepath.Join(src, "daily_manifest_2026-02-12.json")
	seal := filepath.Join(src, "daily_manifest_2026-02-12.sha256")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"chain":[]}`), 0o600))
	require.NoError(t, os.WriteFile(seal, []byte(strings.Repeat("a", 64)), 0o600))

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	res, err := Publish(ctx, s, seal, manifest)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "daily_manifest_2026-02-12.json", res.Artifacts[0].Name)
	assert.Equal(t, Address([]byte(`{"chain":[]}`)), res.Artifacts[0].Address)

	index, err := GetVerified(ctx, s, res.Index)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(index), `[{"address":"sha256:`))

	listed, err := LoadIndex(ctx, s, res.Index)
	require.NoError(t, err)
	assert.Equal(t, res.Artifacts, listed)

	again, err := Publish(ctx, s, manifest, seal)
	require.NoError(t, err)
	assert.Equal(t, res.Index, again.Index, "publishing is idempotent")
}

func TestPublish_Errors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = Publish(ctx, s)
	assert.Error(t, err)

	_, err = Publish(ctx, s, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(a, "x.json"), []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(b, "x.json"), []byte("2"), 0o600))
	_, err = Publish(ctx, s, filepath.Join(a, "x.json"), filepath.Join(b, "x.json"))
	assert.Error(t, err)
}

// baseStore aliases Store so embedding it does not shadow the Store method.
type baseStore = Store

// mangledStore accepts writes but serves different bytes back.
type mangledStore struct {
	baseStore
}

func (m mangledStore) Get(ctx context.Context, address string) ([]byte, error) {
	data, err := m.baseStore.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	return append(data, ' '), nil
}

func TestPublish_DetectsMangledIndex(t *testing.T) {
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "evidence_bundle.sha256")
	require.NoError(t, os.WriteFile(src, []byte(strings.Repeat("b", 64)), 0o600))

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = Publish(ctx, mangledStore{baseStore: fs}, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestLoadIndex_Errors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	addr, err := s.Store(ctx, []byte("not an index"))
	require.NoError(t, err)
	_, err = LoadIndex(ctx, s, addr)
	assert.ErrorContains(t, err, "decode index")

	_, err = LoadIndex(ctx, s, Address([]byte("never stored")))
	assert.True(t, errors.Is(err, ErrNotFound))
}
