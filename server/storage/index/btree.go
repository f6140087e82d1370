package index

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xbtree/logger"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/blob"
	"github.com/zhukovaskychina/xbtree/server/storage/buffer_pool"
	"github.com/zhukovaskychina/xbtree/server/storage/record"
)

// BTreeIndex maps an integer attribute of a relation file to the RIDs
// of its records and answers bounded range scans.
//
// Write operations are not safe for concurrent use; one live index
// instance owns its file exclusively.
type BTreeIndex struct {
	bufMgr *buffer_pool.BufMgr
	file   *blob.BlobFile

	indexName      string
	relationName   string
	attrByteOffset int
	attrType       common.Datatype

	headerPageNum common.PageId
	rootPageNum   common.PageId

	leafOccupancy int
	nodeOccupancy int

	scan scanState
}

// scanState 扫描游标。两次调用之间最多固定一个叶子页。
type scanState struct {
	executing bool

	currentPageNum common.PageId
	currentPage    *common.Page
	nextEntry      int

	lowVal  int64
	highVal int64
	lowOp   common.Operator
	highOp  common.Operator
}

// IndexName derives the on-disk file name of the index over the given
// relation and attribute offset.
func IndexName(relationName string, attrByteOffset int) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// NewBTreeIndex opens the index file if it exists, validating its meta
// page against the caller's parameters, or creates it and bulk-loads
// every record of the relation. Returns the index and its file name.
func NewBTreeIndex(relationName string, bufMgr *buffer_pool.BufMgr, attrByteOffset int, attrType common.Datatype) (*BTreeIndex, string, error) {
	indexName := IndexName(relationName, attrByteOffset)

	if attrType != common.INTEGER {
		return nil, indexName, errors.NotSupportedf("indexing %s attributes", attrType)
	}
	if attrByteOffset < 0 {
		return nil, indexName, errors.NotValidf("attribute byte offset %d", attrByteOffset)
	}

	ix := &BTreeIndex{
		bufMgr:         bufMgr,
		indexName:      indexName,
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		leafOccupancy:  LEAF_CAPACITY,
		nodeOccupancy:  NODE_CAPACITY,
	}

	file, err := blob.Open(indexName)
	if err == nil {
		ix.file = file
		if err = ix.openExisting(); err != nil {
			file.Close()
			return nil, indexName, err
		}
		return ix, indexName, nil
	}
	if errors.Cause(err) != blob.ErrFileNotFound {
		return nil, indexName, errors.Trace(err)
	}

	file, err = blob.Create(indexName)
	if err != nil {
		return nil, indexName, errors.Trace(err)
	}
	ix.file = file
	if err = ix.buildFromRelation(); err != nil {
		file.Delete()
		return nil, indexName, err
	}
	return ix, indexName, nil
}

// openExisting 读取并校验元页
func (ix *BTreeIndex) openExisting() error {
	ix.headerPageNum = ix.file.FirstPageNo()
	page, err := ix.bufMgr.ReadPage(ix.file, ix.headerPageNum)
	if err != nil {
		return errors.Trace(err)
	}

	meta := asMeta(page)
	if meta.relationName() != truncName(ix.relationName) ||
		meta.attrType() != ix.attrType ||
		meta.attrByteOffset() != int32(ix.attrByteOffset) {
		ix.bufMgr.UnPinPage(ix.file, ix.headerPageNum, false)
		return &BadIndexInfoError{IndexName: ix.indexName}
	}
	ix.rootPageNum = meta.rootPageNo()
	if err = ix.bufMgr.UnPinPage(ix.file, ix.headerPageNum, false); err != nil {
		return errors.Trace(err)
	}

	logger.Debugf("opened index %s, root page %d", ix.indexName, ix.rootPageNum)
	return nil
}

// buildFromRelation writes a fresh meta page and an empty root, then
// streams the whole relation through InsertEntry. ErrEndOfFile from
// the scanner is the normal termination and triggers a flush.
func (ix *BTreeIndex) buildFromRelation() error {
	headerPageNum, headerPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		return errors.Trace(err)
	}
	rootPageNum, rootPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		ix.bufMgr.UnPinPage(ix.file, headerPageNum, false)
		return errors.Trace(err)
	}

	ix.headerPageNum = headerPageNum
	ix.rootPageNum = rootPageNum

	meta := asMeta(headerPage)
	meta.setRelationName(ix.relationName)
	meta.setAttrByteOffset(int32(ix.attrByteOffset))
	meta.setAttrType(ix.attrType)
	meta.setRootPageNo(rootPageNum)

	root := asInternal(rootPage)
	root.init(0, common.InvalidPageId)

	if err = ix.bufMgr.UnPinPage(ix.file, headerPageNum, true); err != nil {
		return errors.Trace(err)
	}
	if err = ix.bufMgr.UnPinPage(ix.file, rootPageNum, true); err != nil {
		return errors.Trace(err)
	}

	heap, err := record.OpenHeapFile(ix.relationName, ix.bufMgr)
	if err != nil {
		return errors.Annotatef(err, "opening relation %s", ix.relationName)
	}

	fileScan := record.NewFileScan(heap)
	inserted := 0
	for {
		rid, rec, err := fileScan.ScanNext()
		if err != nil {
			fileScan.Close()
			heap.Close()
			if errors.Cause(err) == record.ErrEndOfFile {
				break
			}
			return errors.Annotatef(err, "scanning relation %s", ix.relationName)
		}
		if len(rec) < ix.attrByteOffset+8 {
			fileScan.Close()
			heap.Close()
			return errors.Errorf("record %s too short for attribute at offset %d", rid, ix.attrByteOffset)
		}
		if err = ix.InsertEntry(rec[ix.attrByteOffset:ix.attrByteOffset+8], rid); err != nil {
			fileScan.Close()
			heap.Close()
			return errors.Trace(err)
		}
		inserted++
	}

	if err = ix.bufMgr.FlushFile(ix.file); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("built index %s over %d records", ix.indexName, inserted)
	return nil
}

// Close 结束扫描、刷盘并关闭索引文件。
func (ix *BTreeIndex) Close() error {
	if ix.scan.executing {
		// 清理路径，PageNotPinned在这里吞掉
		ix.EndScan()
	}

	err := ix.bufMgr.FlushFile(ix.file)
	if cerr := ix.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// File 底层索引文件，供测试检查固定页计数。
func (ix *BTreeIndex) File() *blob.BlobFile {
	return ix.file
}

// RootPageNum 当前根页号
func (ix *BTreeIndex) RootPageNum() common.PageId {
	return ix.rootPageNum
}

// truncName applies the meta-page name truncation so open-time
// comparison sees the same bytes that were stored.
func truncName(name string) string {
	if len(name) > metaRelationNameLen-1 {
		return name[:metaRelationNameLen-1]
	}
	return name
}
