package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/xbtree/server/common"
)

func TestCreateOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myData")

	blobFile, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, blobFile.Name())
	assert.Equal(t, uint32(0), blobFile.PageCount())
	assert.Equal(t, common.InvalidPageId, blobFile.FirstPageNo())
	require.NoError(t, blobFile.Close())

	_, err = Create(path)
	assert.Equal(t, ErrFileExists, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ErrFileNotFound, err)

	blobFile, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, blobFile.Close())
}

func TestPageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myData")
	blobFile, err := Create(path)
	require.NoError(t, err)

	var pageNos []common.PageId
	for i := 0; i < 3; i++ {
		pageNo, err := blobFile.AllocatePage()
		require.NoError(t, err)
		pageNos = append(pageNos, pageNo)

		var page common.Page
		page[0] = byte('x')
		page[1] = byte(pageNo)
		page[common.PAGE_SIZE-1] = byte(pageNo)
		require.NoError(t, blobFile.WritePage(pageNo, &page))
	}
	assert.Equal(t, []common.PageId{1, 2, 3}, pageNos)
	assert.Equal(t, common.PageId(1), blobFile.FirstPageNo())
	require.NoError(t, blobFile.Close())

	// 重新打开后读回
	blobFile, err = Open(path)
	require.NoError(t, err)
	defer blobFile.Close()
	assert.Equal(t, uint32(3), blobFile.PageCount())

	for _, pageNo := range pageNos {
		var page common.Page
		require.NoError(t, blobFile.ReadPage(pageNo, &page))
		assert.Equal(t, byte('x'), page[0])
		assert.Equal(t, byte(pageNo), page[1])
		assert.Equal(t, byte(pageNo), page[common.PAGE_SIZE-1])
	}

	var page common.Page
	assert.Equal(t, ErrInvalidPage, errors.Cause(blobFile.ReadPage(0, &page)))
	assert.Equal(t, ErrInvalidPage, errors.Cause(blobFile.ReadPage(4, &page)))
	assert.Equal(t, ErrInvalidPage, errors.Cause(blobFile.WritePage(9, &page)))
}

func TestHeaderCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "myData")
	blobFile, err := Create(path)
	require.NoError(t, err)
	_, err = blobFile.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, blobFile.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[12]++ // page count without a checksum update
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, err = Open(path)
	assert.Equal(t, ErrBadFileHeader, errors.Cause(err))
}
