//go:build unix

package shm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosixBackendCreateAllocClose(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewPosixBackend("seg-basic", 1<<20, WithPosixDir(dir))
	require.NoError(t, err)

	p, err := NewProvider(backend)
	require.NoError(t, err)

	layout, _ := NewLayout(1024, 64)
	buf, err := p.Alloc(layout)
	require.NoError(t, err)

	view, err := buf.Mutable()
	require.NoError(t, err)
	copy(view.Bytes(), "mapped")
	view.End()
	assert.Equal(t, []byte("mapped"), buf.Bytes()[:6])

	buf.Release()
	require.NoError(t, p.Close())

	// The creating backend unlinks its file on close.
	_, err = os.Stat(filepath.Join(dir, "seg-basic"))
	assert.True(t, os.IsNotExist(err))
}

func TestPosixBackendGeneratedName(t *testing.T) {
	backend, err := NewPosixBackend("", 1<<20, WithPosixDir(t.TempDir()))
	require.NoError(t, err)
	assert.NotEmpty(t, backend.Name())
	require.NoError(t, backend.Close())
}

func TestPosixBackendExclusiveCreate(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewPosixBackend("seg-excl", 1<<20, WithPosixDir(dir))
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewPosixBackend("seg-excl", 1<<20, WithPosixDir(dir))
	assert.Error(t, err)
}

func TestPosixAttachSeesCreatorBlocks(t *testing.T) {
	dir := t.TempDir()
	creator, err := NewPosixBackend("seg-attach", 1<<20, WithPosixDir(dir))
	require.NoError(t, err)
	defer creator.Close()

	layout, _ := NewLayout(512, 64)
	reg, err := creator.Allocate(layout)
	require.NoError(t, err)
	copy(reg.Data, "cross-process")

	attached, err := AttachPosixBackend("seg-attach", WithPosixDir(dir))
	require.NoError(t, err)
	defer attached.Close()

	regions := attached.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, []byte("cross-process"), regions[0].Data[:13])
	assert.Equal(t, uint32(os.Getpid()), regions[0].Owner())
	assert.Equal(t, creator.Stats().Watermark, attached.Stats().Watermark)
}

func TestPosixAttachGCReclaimsDeadOwner(t *testing.T) {
	dir := t.TempDir()
	creator, err := NewPosixBackend("seg-orphan", 1<<20, WithPosixDir(dir))
	require.NoError(t, err)
	defer creator.Close()

	layout, _ := NewLayout(256, 64)
	_, err = creator.Allocate(layout)
	require.NoError(t, err)

	// Attach as if from another process, with a probe that reports the
	// recorded owner dead.
	attached, err := AttachPosixBackend("seg-orphan", WithPosixDir(dir),
		WithPosixLivenessProbe(func(uint32) bool { return false }))
	require.NoError(t, err)
	defer attached.Close()

	p, err := NewProvider(attached)
	require.NoError(t, err)

	reclaimed, orphans := p.GC()
	assert.Equal(t, 1, orphans)
	assert.Greater(t, reclaimed, uint64(0))
	assert.Empty(t, attached.Regions())
}

func TestPosixAttachRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-segment")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))

	_, err := AttachPosixBackend("not-a-segment", WithPosixDir(dir))
	assert.ErrorIs(t, err, ErrBadSegment)
}
