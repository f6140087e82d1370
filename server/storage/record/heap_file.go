package record

import (
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/blob"
	"github.com/zhukovaskychina/xbtree/server/storage/buffer_pool"
	"github.com/zhukovaskychina/xbtree/util"
)

// 关系文件：槽式页堆文件。
//
// Page layout:
//
//	0  uint16 slotCount
//	2  uint16 freeOff          start of the record area
//	4  slot directory          4 bytes per slot: uint16 off, uint16 len
//	.. free space ..
//	freeOff .. PAGE_SIZE       record bytes, growing downward
//
// Records never move once written, so a RecordId stays valid for the
// life of the file. Pages are numbered from 1 — no record can ever
// carry the reserved RID (0,0).
const (
	slotCountOff  = 0
	freeOffOff    = 2
	slotDirOff    = 4
	slotEntrySize = 4

	// MaxRecordSize 单页可容纳的最大记录
	MaxRecordSize = common.PAGE_SIZE - slotDirOff - slotEntrySize
)

type HeapFile struct {
	file   *blob.BlobFile
	bufMgr *buffer_pool.BufMgr
}

// CreateHeapFile 新建堆文件
func CreateHeapFile(filePath string, bufMgr *buffer_pool.BufMgr) (*HeapFile, error) {
	blobFile, err := blob.Create(filePath)
	if err != nil {
		return nil, err
	}
	return &HeapFile{file: blobFile, bufMgr: bufMgr}, nil
}

// OpenHeapFile 打开已有堆文件
func OpenHeapFile(filePath string, bufMgr *buffer_pool.BufMgr) (*HeapFile, error) {
	blobFile, err := blob.Open(filePath)
	if err != nil {
		return nil, err
	}
	return &HeapFile{file: blobFile, bufMgr: bufMgr}, nil
}

// File 底层页文件
func (heap *HeapFile) File() *blob.BlobFile {
	return heap.file
}

func slotCount(page *common.Page) uint16 {
	_, n := util.ReadUB2(page[:], slotCountOff)
	return n
}

func freeOff(page *common.Page) uint16 {
	_, off := util.ReadUB2(page[:], freeOffOff)
	return off
}

func slotEntry(page *common.Page, slot uint16) (off uint16, length uint16) {
	cursor := slotDirOff + int(slot)*slotEntrySize
	cursor, off = util.ReadUB2(page[:], cursor)
	_, length = util.ReadUB2(page[:], cursor)
	return off, length
}

// hasRoom 判断页内是否还能放下一条记录
func hasRoom(page *common.Page, recLen int) bool {
	used := slotDirOff + int(slotCount(page))*slotEntrySize
	return int(freeOff(page))-recLen >= used+slotEntrySize
}

func initHeapPage(page *common.Page) {
	util.WriteUB2(page[:], slotCountOff, 0)
	util.WriteUB2(page[:], freeOffOff, common.PAGE_SIZE)
}

// InsertRecord 追加一条记录，返回其RID。
func (heap *HeapFile) InsertRecord(data []byte) (common.RecordId, error) {
	if len(data) == 0 || len(data) > MaxRecordSize {
		return common.RecordId{}, errors.Wrapf(ErrRecordTooLarge, "%d bytes", len(data))
	}

	var page *common.Page
	var pageNo common.PageId
	var err error

	if heap.file.PageCount() > 0 {
		pageNo = common.PageId(heap.file.PageCount())
		page, err = heap.bufMgr.ReadPage(heap.file, pageNo)
		if err != nil {
			return common.RecordId{}, err
		}
		if !hasRoom(page, len(data)) {
			if err = heap.bufMgr.UnPinPage(heap.file, pageNo, false); err != nil {
				return common.RecordId{}, err
			}
			page = nil
		}
	}

	if page == nil {
		pageNo, page, err = heap.bufMgr.AllocPage(heap.file)
		if err != nil {
			return common.RecordId{}, err
		}
		initHeapPage(page)
	}

	slot := slotCount(page)
	recOff := freeOff(page) - uint16(len(data))
	copy(page[recOff:], data)

	cursor := slotDirOff + int(slot)*slotEntrySize
	cursor = util.WriteUB2(page[:], cursor, recOff)
	util.WriteUB2(page[:], cursor, uint16(len(data)))
	util.WriteUB2(page[:], slotCountOff, slot+1)
	util.WriteUB2(page[:], freeOffOff, recOff)

	if err = heap.bufMgr.UnPinPage(heap.file, pageNo, true); err != nil {
		return common.RecordId{}, err
	}
	return common.RecordId{PageNo: pageNo, SlotNo: slot}, nil
}

// GetRecord 按RID取记录内容（拷贝）。
func (heap *HeapFile) GetRecord(rid common.RecordId) ([]byte, error) {
	if rid.PageNo == common.InvalidPageId || uint32(rid.PageNo) > heap.file.PageCount() {
		return nil, errors.Wrapf(ErrInvalidRecord, "rid %s", rid)
	}
	page, err := heap.bufMgr.ReadPage(heap.file, rid.PageNo)
	if err != nil {
		return nil, err
	}
	if rid.SlotNo >= slotCount(page) {
		heap.bufMgr.UnPinPage(heap.file, rid.PageNo, false)
		return nil, errors.Wrapf(ErrInvalidRecord, "rid %s", rid)
	}

	off, length := slotEntry(page, rid.SlotNo)
	data := make([]byte, length)
	copy(data, page[off:int(off)+int(length)])

	if err = heap.bufMgr.UnPinPage(heap.file, rid.PageNo, false); err != nil {
		return nil, err
	}
	return data, nil
}

// Flush 将脏页写回磁盘
func (heap *HeapFile) Flush() error {
	return heap.bufMgr.FlushFile(heap.file)
}

// Close 刷盘并关闭
func (heap *HeapFile) Close() error {
	if err := heap.bufMgr.FlushFile(heap.file); err != nil {
		return err
	}
	return heap.file.Close()
}
