package buffer_pool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/blob"
)

func newTestFile(t *testing.T, name string) *blob.BlobFile {
	t.Helper()
	file, err := blob.Create(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return file
}

func TestPinUnpin(t *testing.T) {
	bufMgr := NewBufMgr(16)
	file := newTestFile(t, "pins")

	pageNo, page, err := bufMgr.AllocPage(file)
	require.NoError(t, err)
	require.NotNil(t, page)
	page[0] = 0xAB
	page[common.PAGE_SIZE-1] = 0xCD

	// 第二次固定同一页
	again, err := bufMgr.ReadPage(file, pageNo)
	require.NoError(t, err)
	assert.Equal(t, page, again)

	require.NoError(t, bufMgr.UnPinPage(file, pageNo, true))
	require.NoError(t, bufMgr.UnPinPage(file, pageNo, false))
	assert.Equal(t, ErrPageNotPinned, bufMgr.UnPinPage(file, pageNo, false))
	assert.Equal(t, ErrHashNotFound, bufMgr.UnPinPage(file, common.PageId(999), false))

	// dirty标记在FlushFile后真正落盘
	require.NoError(t, bufMgr.FlushFile(file))
	reread, err := bufMgr.ReadPage(file, pageNo)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), reread[0])
	assert.Equal(t, byte(0xCD), reread[common.PAGE_SIZE-1])
	require.NoError(t, bufMgr.UnPinPage(file, pageNo, false))
}

func TestEvictionWritesBack(t *testing.T) {
	bufMgr := NewBufMgr(8)
	file := newTestFile(t, "evict")

	const pages = 40
	for i := 0; i < pages; i++ {
		pageNo, page, err := bufMgr.AllocPage(file)
		require.NoError(t, err)
		page[0] = byte(pageNo)
		page[1] = byte(pageNo >> 8)
		require.NoError(t, bufMgr.UnPinPage(file, pageNo, true))
	}

	// far more pages than frames: every page must survive eviction
	for pageNo := common.PageId(1); pageNo <= pages; pageNo++ {
		page, err := bufMgr.ReadPage(file, pageNo)
		require.NoError(t, err)
		assert.Equal(t, byte(pageNo), page[0])
		assert.Equal(t, byte(pageNo>>8), page[1])
		require.NoError(t, bufMgr.UnPinPage(file, pageNo, false))
	}

	stats := bufMgr.GetStats()
	assert.Positive(t, stats["evictions"])
}

func TestBufferExceeded(t *testing.T) {
	bufMgr := NewBufMgr(4)
	file := newTestFile(t, "full")

	for i := 0; i < 4; i++ {
		_, _, err := bufMgr.AllocPage(file)
		require.NoError(t, err)
	}
	_, _, err := bufMgr.AllocPage(file)
	assert.Equal(t, ErrBufferExceeded, err)

	for pageNo := common.PageId(1); pageNo <= 4; pageNo++ {
		require.NoError(t, bufMgr.UnPinPage(file, pageNo, true))
	}
	_, _, err = bufMgr.AllocPage(file)
	assert.NoError(t, err)
}

func TestFlushFilePinned(t *testing.T) {
	bufMgr := NewBufMgr(8)
	file := newTestFile(t, "flush")

	pageNo, _, err := bufMgr.AllocPage(file)
	require.NoError(t, err)

	assert.Equal(t, ErrPagePinned, bufMgr.FlushFile(file))
	assert.Equal(t, 1, bufMgr.PinnedPages(file))

	require.NoError(t, bufMgr.UnPinPage(file, pageNo, true))
	require.NoError(t, bufMgr.FlushFile(file))
	assert.Zero(t, bufMgr.PinnedPages(file))

	// flushed frames are invalidated; the next read misses
	misses := bufMgr.GetStats()["misses"]
	_, err = bufMgr.ReadPage(file, pageNo)
	require.NoError(t, err)
	assert.Equal(t, misses+1, bufMgr.GetStats()["misses"])
	require.NoError(t, bufMgr.UnPinPage(file, pageNo, false))
}

func TestTwoFilesShareThePool(t *testing.T) {
	bufMgr := NewBufMgr(8)
	fileA := newTestFile(t, "a")
	fileB := newTestFile(t, "b")

	pageA, bufA, err := bufMgr.AllocPage(fileA)
	require.NoError(t, err)
	bufA[0] = 'A'
	pageB, bufB, err := bufMgr.AllocPage(fileB)
	require.NoError(t, err)
	bufB[0] = 'B'

	require.NoError(t, bufMgr.UnPinPage(fileA, pageA, true))
	require.NoError(t, bufMgr.UnPinPage(fileB, pageB, true))
	require.NoError(t, bufMgr.FlushFile(fileA))
	require.NoError(t, bufMgr.FlushFile(fileB))

	got, err := bufMgr.ReadPage(fileA, pageA)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), got[0])
	require.NoError(t, bufMgr.UnPinPage(fileA, pageA, false))

	got, err = bufMgr.ReadPage(fileB, pageB)
	require.NoError(t, err)
	assert.Equal(t, byte('B'), got[0])
	require.NoError(t, bufMgr.UnPinPage(fileB, pageB, false))
}
