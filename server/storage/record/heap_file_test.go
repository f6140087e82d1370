package record

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/buffer_pool"
)

func TestInsertAndScan(t *testing.T) {
	bufMgr := buffer_pool.NewBufMgr(64)
	heap, err := CreateHeapFile(filepath.Join(t.TempDir(), "rel"), bufMgr)
	require.NoError(t, err)
	defer heap.Close()

	const total = 1000
	rids := make([]common.RecordId, 0, total)
	for i := 0; i < total; i++ {
		tuple := Tuple{I: int64(i), D: float64(i) / 2, S: fmt.Sprintf("%05d string record", i)}
		rid, err := heap.InsertRecord(tuple.Bytes())
		require.NoError(t, err)
		require.False(t, rid.IsSentinel(), "heap handed out the reserved RID")
		rids = append(rids, rid)
	}
	assert.Zero(t, bufMgr.PinnedPages(heap.File()))

	fileScan := NewFileScan(heap)
	seen := 0
	for {
		rid, data, err := fileScan.ScanNext()
		if err == ErrEndOfFile {
			break
		}
		require.NoError(t, err)
		require.Equal(t, rids[seen], rid, "scan order differs from insertion order")
		tuple := ParseTuple(data)
		assert.Equal(t, int64(seen), tuple.I)
		assert.Equal(t, float64(seen)/2, tuple.D)
		assert.Equal(t, fmt.Sprintf("%05d string record", seen), tuple.S)
		seen++
	}
	assert.Equal(t, total, seen)

	// EOF沉淀后继续返回EOF
	_, _, err = fileScan.ScanNext()
	assert.Equal(t, ErrEndOfFile, err)
	require.NoError(t, fileScan.Close())
	assert.Zero(t, bufMgr.PinnedPages(heap.File()))
}

func TestGetRecord(t *testing.T) {
	bufMgr := buffer_pool.NewBufMgr(64)
	heap, err := CreateHeapFile(filepath.Join(t.TempDir(), "rel"), bufMgr)
	require.NoError(t, err)
	defer heap.Close()

	tuple := Tuple{I: -42, D: 3.5, S: "negative key record"}
	rid, err := heap.InsertRecord(tuple.Bytes())
	require.NoError(t, err)

	data, err := heap.GetRecord(rid)
	require.NoError(t, err)
	got := ParseTuple(data)
	assert.Equal(t, tuple, got)

	_, err = heap.GetRecord(common.RecordId{PageNo: rid.PageNo, SlotNo: 99})
	assert.Equal(t, ErrInvalidRecord, errors.Cause(err))
	_, err = heap.GetRecord(common.RecordId{PageNo: 999, SlotNo: 0})
	assert.Equal(t, ErrInvalidRecord, errors.Cause(err))
	_, err = heap.GetRecord(common.RecordId{})
	assert.Equal(t, ErrInvalidRecord, errors.Cause(err))
}

func TestRecordTooLarge(t *testing.T) {
	bufMgr := buffer_pool.NewBufMgr(16)
	heap, err := CreateHeapFile(filepath.Join(t.TempDir(), "rel"), bufMgr)
	require.NoError(t, err)
	defer heap.Close()

	_, err = heap.InsertRecord(nil)
	assert.Equal(t, ErrRecordTooLarge, errors.Cause(err))
	_, err = heap.InsertRecord(make([]byte, common.PAGE_SIZE))
	assert.Equal(t, ErrRecordTooLarge, errors.Cause(err))

	// 刚好放得下
	_, err = heap.InsertRecord(make([]byte, MaxRecordSize))
	assert.NoError(t, err)
}

func TestScanSurvivesReopen(t *testing.T) {
	bufMgr := buffer_pool.NewBufMgr(64)
	path := filepath.Join(t.TempDir(), "rel")
	heap, err := CreateHeapFile(path, bufMgr)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		tuple := Tuple{I: int64(i), S: "persisted"}
		_, err = heap.InsertRecord(tuple.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, heap.Close())

	reopened, err := OpenHeapFile(path, bufMgr)
	require.NoError(t, err)
	defer reopened.Close()

	fileScan := NewFileScan(reopened)
	seen := 0
	for {
		_, data, err := fileScan.ScanNext()
		if err == ErrEndOfFile {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, int64(seen), ParseTuple(data).I)
		seen++
	}
	assert.Equal(t, 300, seen)
	require.NoError(t, fileScan.Close())
}
