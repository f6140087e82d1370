package record

import (
	"github.com/zhukovaskychina/xbtree/server/common"
)

// FileScan 顺序遍历堆文件的全部记录。
// 扫描期间最多固定一个堆页；Close释放它。
type FileScan struct {
	heap *HeapFile

	pageNo   common.PageId
	page     *common.Page
	nextSlot uint16
	done     bool
}

func NewFileScan(heap *HeapFile) *FileScan {
	return &FileScan{heap: heap}
}

// ScanNext returns the next record and its RID in physical order.
// Past the last record every call returns ErrEndOfFile.
func (scan *FileScan) ScanNext() (common.RecordId, []byte, error) {
	if scan.done {
		return common.RecordId{}, nil, ErrEndOfFile
	}

	if scan.page == nil {
		first := scan.heap.file.FirstPageNo()
		if first == common.InvalidPageId {
			scan.done = true
			return common.RecordId{}, nil, ErrEndOfFile
		}
		page, err := scan.heap.bufMgr.ReadPage(scan.heap.file, first)
		if err != nil {
			return common.RecordId{}, nil, err
		}
		scan.pageNo = first
		scan.page = page
		scan.nextSlot = 0
	}

	for {
		if scan.nextSlot < slotCount(scan.page) {
			slot := scan.nextSlot
			off, length := slotEntry(scan.page, slot)
			data := make([]byte, length)
			copy(data, scan.page[off:int(off)+int(length)])
			scan.nextSlot++
			return common.RecordId{PageNo: scan.pageNo, SlotNo: slot}, data, nil
		}

		next := scan.pageNo + 1
		if err := scan.heap.bufMgr.UnPinPage(scan.heap.file, scan.pageNo, false); err != nil {
			return common.RecordId{}, nil, err
		}
		scan.page = nil
		if uint32(next) > scan.heap.file.PageCount() {
			scan.done = true
			return common.RecordId{}, nil, ErrEndOfFile
		}
		page, err := scan.heap.bufMgr.ReadPage(scan.heap.file, next)
		if err != nil {
			return common.RecordId{}, nil, err
		}
		scan.pageNo = next
		scan.page = page
		scan.nextSlot = 0
	}
}

// Close 释放扫描持有的页
func (scan *FileScan) Close() error {
	scan.done = true
	if scan.page != nil {
		page := scan.pageNo
		scan.page = nil
		return scan.heap.bufMgr.UnPinPage(scan.heap.file, page, false)
	}
	return nil
}
