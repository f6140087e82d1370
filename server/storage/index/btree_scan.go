package index

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xbtree/logger"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/buffer_pool"
	"github.com/zhukovaskychina/xbtree/util"
)

// StartScan positions a cursor on the first entry inside
// (lowVal lowOp .. highVal highOp). lowOp must be GT or GTE, highOp LT
// or LTE. Returns ErrNoSuchKeyFound when the range holds no entry; in
// that case no page stays pinned.
func (ix *BTreeIndex) StartScan(lowVal []byte, lowOp common.Operator, highVal []byte, highOp common.Operator) error {
	if lowOp != common.GT && lowOp != common.GTE {
		return ErrBadOpcodes
	}
	if highOp != common.LT && highOp != common.LTE {
		return ErrBadOpcodes
	}
	if len(lowVal) < 8 || len(highVal) < 8 {
		return errors.NotValidf("scan bounds of %d/%d bytes", len(lowVal), len(highVal))
	}

	_, low := util.ReadUB8Long(lowVal, 0)
	_, high := util.ReadUB8Long(highVal, 0)
	if low > high {
		return ErrBadScanrange
	}

	if ix.scan.executing {
		// 上一个扫描还开着，先把它收掉
		logger.Debugf("scan restarted on %s while active", ix.indexName)
		ix.EndScan()
	}

	ix.scan.lowVal = low
	ix.scan.highVal = high
	ix.scan.lowOp = lowOp
	ix.scan.highOp = highOp

	// meta page tells us where the root currently is
	metaPg, err := ix.bufMgr.ReadPage(ix.file, ix.headerPageNum)
	if err != nil {
		return errors.Trace(err)
	}
	pageNo := asMeta(metaPg).rootPageNo()
	if err = ix.bufMgr.UnPinPage(ix.file, ix.headerPageNum, false); err != nil {
		return errors.Trace(err)
	}

	// descend, holding only the current node
	var page *common.Page
	for {
		page, err = ix.bufMgr.ReadPage(ix.file, pageNo)
		if err != nil {
			return errors.Trace(err)
		}
		if isLeafPage(page) {
			break
		}
		node := asInternal(page)
		if node.keyCount() == 0 {
			// empty tree
			if err = ix.bufMgr.UnPinPage(ix.file, pageNo, false); err != nil {
				return errors.Trace(err)
			}
			return ErrNoSuchKeyFound
		}
		child := node.child(node.searchInsert(low))
		if err = ix.bufMgr.UnPinPage(ix.file, pageNo, false); err != nil {
			return errors.Trace(err)
		}
		pageNo = child
	}

	ix.scan.currentPageNum = pageNo
	ix.scan.currentPage = page

	// first slot satisfying the low predicate, hopping right as needed
	for {
		leaf := asLeaf(ix.scan.currentPage)
		found := -1
		for i := 0; i < leaf.keyCount(); i++ {
			key := leaf.key(i)
			if (ix.scan.lowOp == common.GTE && key >= low) ||
				(ix.scan.lowOp == common.GT && key > low) {
				found = i
				break
			}
		}
		if found >= 0 {
			ix.scan.nextEntry = found
			break
		}

		sib := leaf.rightSib()
		if err = ix.bufMgr.UnPinPage(ix.file, ix.scan.currentPageNum, false); err != nil {
			return errors.Trace(err)
		}
		if sib == common.InvalidPageId {
			ix.scan.currentPage = nil
			return ErrNoSuchKeyFound
		}
		ix.scan.currentPageNum = sib
		if ix.scan.currentPage, err = ix.bufMgr.ReadPage(ix.file, sib); err != nil {
			return errors.Trace(err)
		}
	}

	// the first qualifying slot must also satisfy the high predicate
	leaf := asLeaf(ix.scan.currentPage)
	key := leaf.key(ix.scan.nextEntry)
	rid := leaf.rid(ix.scan.nextEntry)
	if rid.IsSentinel() || key > high || (key == high && highOp == common.LT) {
		if err = ix.bufMgr.UnPinPage(ix.file, ix.scan.currentPageNum, false); err != nil {
			return errors.Trace(err)
		}
		ix.scan.currentPage = nil
		return ErrNoSuchKeyFound
	}

	ix.scan.executing = true
	return nil
}

// ScanNext emits the RID of the current entry and advances the cursor,
// hopping along the right-sibling chain. Returns ErrIndexScanCompleted
// once the range is exhausted and ErrScanNotInitialized without an
// active scan.
func (ix *BTreeIndex) ScanNext(outRid *common.RecordId) error {
	if !ix.scan.executing {
		return ErrScanNotInitialized
	}
	if ix.scan.currentPageNum == common.InvalidPageId {
		// ran off the end of the leaf chain on the previous call
		return ErrIndexScanCompleted
	}

	leaf := asLeaf(ix.scan.currentPage)
	key := leaf.key(ix.scan.nextEntry)
	rid := leaf.rid(ix.scan.nextEntry)

	if rid.IsSentinel() || key > ix.scan.highVal ||
		(key == ix.scan.highVal && ix.scan.highOp == common.LT) {
		return ErrIndexScanCompleted
	}
	*outRid = rid

	// advance
	ix.scan.nextEntry++
	if ix.scan.nextEntry >= leaf.keyCount() || leaf.rid(ix.scan.nextEntry).IsSentinel() {
		sib := leaf.rightSib()
		if err := ix.bufMgr.UnPinPage(ix.file, ix.scan.currentPageNum, false); err != nil {
			return errors.Trace(err)
		}
		ix.scan.currentPage = nil
		ix.scan.currentPageNum = common.InvalidPageId
		if sib != common.InvalidPageId {
			page, err := ix.bufMgr.ReadPage(ix.file, sib)
			if err != nil {
				return errors.Trace(err)
			}
			ix.scan.currentPageNum = sib
			ix.scan.currentPage = page
			ix.scan.nextEntry = 0
		}
	}
	return nil
}

// EndScan releases the pinned leaf, if any, and clears the cursor.
func (ix *BTreeIndex) EndScan() error {
	if !ix.scan.executing {
		return ErrScanNotInitialized
	}
	ix.scan.executing = false

	if ix.scan.currentPageNum != common.InvalidPageId {
		err := ix.bufMgr.UnPinPage(ix.file, ix.scan.currentPageNum, false)
		ix.scan.currentPage = nil
		ix.scan.currentPageNum = common.InvalidPageId
		if err != nil && errors.Cause(err) != buffer_pool.ErrPageNotPinned {
			return errors.Trace(err)
		}
	}
	return nil
}
