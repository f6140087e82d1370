package blob

import (
	"os"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/util"
)

// 存储中间层：一个BlobFile就是一个按页编址的文件。
//
// File layout:
//
//	offset 0                  header block (HEADER_SIZE bytes)
//	offset HEADER_SIZE        page 1
//	offset HEADER_SIZE+N*PAGE page N+1
//
// Page numbers start at 1; page 0 is the null sentinel shared with the
// rest of the engine.
const (
	HEADER_SIZE = 512

	blobMagic   uint32 = 0x58425442 // "XBTB"
	blobVersion uint32 = 1
)

// header byte layout, checksummed with xxhash64 over [0, checksumOff)
const (
	magicOff    = 0
	versionOff  = 4
	pageSizeOff = 8
	pageCntOff  = 12
	checksumOff = 16
	headerLen   = 24
)

type BlobFile struct {
	StorageFile *os.File
	FilePath    string

	pageCount uint32
}

// Create 新建一个空的页文件，文件已存在时返回ErrFileExists。
func Create(filePath string) (*BlobFile, error) {
	exists, err := util.PathExists(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", filePath)
	}
	if exists {
		return nil, ErrFileExists
	}

	f, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", filePath)
	}

	blobFile := &BlobFile{
		StorageFile: f,
		FilePath:    filePath,
		pageCount:   0,
	}
	if err := blobFile.writeHeader(); err != nil {
		f.Close()
		os.Remove(filePath)
		return nil, err
	}
	return blobFile, nil
}

// Open 打开已有的页文件并校验文件头。
func Open(filePath string) (*BlobFile, error) {
	exists, err := util.PathExists(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", filePath)
	}
	if !exists {
		return nil, ErrFileNotFound
	}

	f, err := os.OpenFile(filePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filePath)
	}

	blobFile := &BlobFile{
		StorageFile: f,
		FilePath:    filePath,
	}
	if err := blobFile.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return blobFile, nil
}

func (blobFile *BlobFile) writeHeader() error {
	var buff [HEADER_SIZE]byte
	cursor := util.WriteUB4(buff[:], magicOff, blobMagic)
	cursor = util.WriteUB4(buff[:], cursor, blobVersion)
	cursor = util.WriteUB4(buff[:], cursor, uint32(common.PAGE_SIZE))
	cursor = util.WriteUB4(buff[:], cursor, blobFile.pageCount)
	util.WriteUB8(buff[:], cursor, util.HashCode(buff[:checksumOff]))

	if _, err := blobFile.StorageFile.WriteAt(buff[:], 0); err != nil {
		return errors.Wrapf(err, "write header of %s", blobFile.FilePath)
	}
	return nil
}

func (blobFile *BlobFile) readHeader() error {
	var buff [headerLen]byte
	if _, err := blobFile.StorageFile.ReadAt(buff[:], 0); err != nil {
		return errors.Wrapf(ErrBadFileHeader, "read header of %s: %v", blobFile.FilePath, err)
	}

	cursor, magic := util.ReadUB4(buff[:], magicOff)
	cursor, version := util.ReadUB4(buff[:], cursor)
	cursor, pageSize := util.ReadUB4(buff[:], cursor)
	cursor, pageCount := util.ReadUB4(buff[:], cursor)
	_, checksum := util.ReadUB8(buff[:], cursor)

	if magic != blobMagic || version != blobVersion {
		return errors.Wrapf(ErrBadFileHeader, "%s: magic=%#x version=%d", blobFile.FilePath, magic, version)
	}
	if pageSize != uint32(common.PAGE_SIZE) {
		return errors.Wrapf(ErrBadFileHeader, "%s: page size %d, engine uses %d", blobFile.FilePath, pageSize, common.PAGE_SIZE)
	}
	if checksum != util.HashCode(buff[:checksumOff]) {
		return errors.Wrapf(ErrBadFileHeader, "%s: header checksum mismatch", blobFile.FilePath)
	}

	blobFile.pageCount = pageCount
	return nil
}

func pageOffset(pageNo common.PageId) int64 {
	return HEADER_SIZE + int64(pageNo-1)*common.PAGE_SIZE
}

// ReadPage 读取一个页的内容
func (blobFile *BlobFile) ReadPage(pageNo common.PageId, page *common.Page) error {
	if pageNo == common.InvalidPageId || uint32(pageNo) > blobFile.pageCount {
		return errors.Wrapf(ErrInvalidPage, "%s: read page %d of %d", blobFile.FilePath, pageNo, blobFile.pageCount)
	}
	if _, err := blobFile.StorageFile.ReadAt(page[:], pageOffset(pageNo)); err != nil {
		return errors.Wrapf(err, "read page %d of %s", pageNo, blobFile.FilePath)
	}
	return nil
}

// WritePage 将一个页写回文件
func (blobFile *BlobFile) WritePage(pageNo common.PageId, page *common.Page) error {
	if pageNo == common.InvalidPageId || uint32(pageNo) > blobFile.pageCount {
		return errors.Wrapf(ErrInvalidPage, "%s: write page %d of %d", blobFile.FilePath, pageNo, blobFile.pageCount)
	}
	if _, err := blobFile.StorageFile.WriteAt(page[:], pageOffset(pageNo)); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageNo, blobFile.FilePath)
	}
	return nil
}

// AllocatePage 在文件尾部分配一个全零页并持久化文件头。
func (blobFile *BlobFile) AllocatePage() (common.PageId, error) {
	pageNo := common.PageId(blobFile.pageCount + 1)

	var zero common.Page
	if _, err := blobFile.StorageFile.WriteAt(zero[:], pageOffset(pageNo)); err != nil {
		return common.InvalidPageId, errors.Wrapf(err, "extend %s to page %d", blobFile.FilePath, pageNo)
	}

	blobFile.pageCount++
	if err := blobFile.writeHeader(); err != nil {
		blobFile.pageCount--
		return common.InvalidPageId, err
	}
	return pageNo, nil
}

// FirstPageNo returns the number of the file's first allocated page, or
// InvalidPageId for an empty file.
func (blobFile *BlobFile) FirstPageNo() common.PageId {
	if blobFile.pageCount == 0 {
		return common.InvalidPageId
	}
	return 1
}

// PageCount 已分配页数
func (blobFile *BlobFile) PageCount() uint32 {
	return blobFile.pageCount
}

func (blobFile *BlobFile) Name() string {
	return blobFile.FilePath
}

func (blobFile *BlobFile) Close() error {
	return blobFile.StorageFile.Close()
}

// Delete 关闭并删除文件
func (blobFile *BlobFile) Delete() error {
	blobFile.StorageFile.Close()
	return os.Remove(blobFile.FilePath)
}
