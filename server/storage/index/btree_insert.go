package index

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xbtree/logger"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/util"
)

// InsertEntry inserts (key, rid) into the index. key points at the
// caller's record bytes; the first 8 bytes are read as the integer
// attribute.
func (ix *BTreeIndex) InsertEntry(key []byte, rid common.RecordId) error {
	if len(key) < 8 {
		return errors.NotValidf("key of %d bytes", len(key))
	}
	_, keyVal := util.ReadUB8Long(key, 0)
	return ix.insert(ix.rootPageNum, keyVal, rid)
}

// insert descends from pageNo to the owning leaf and inserts there,
// splitting on the way back up as needed. The page stays pinned across
// the recursion into its child, one pin per level.
func (ix *BTreeIndex) insert(pageNo common.PageId, keyVal int64, rid common.RecordId) error {
	page, err := ix.bufMgr.ReadPage(ix.file, pageNo)
	if err != nil {
		return errors.Trace(err)
	}

	if isLeafPage(page) {
		leaf := asLeaf(page)
		if leaf.keyCount() < ix.leafOccupancy {
			leaf.insertAt(leaf.searchInsert(keyVal), keyVal, rid)
			return errors.Trace(ix.bufMgr.UnPinPage(ix.file, pageNo, true))
		}
		err = ix.leafSplitInsert(pageNo, page, keyVal, rid)
		if uerr := ix.bufMgr.UnPinPage(ix.file, pageNo, true); err == nil {
			err = errors.Trace(uerr)
		}
		return err
	}

	node := asInternal(page)
	if node.keyCount() == 0 {
		// 全新的树，第一次插入
		dirty, berr := ix.bootstrapRoot(pageNo, node, keyVal, rid)
		err = berr
		if uerr := ix.bufMgr.UnPinPage(ix.file, pageNo, dirty); err == nil {
			err = errors.Trace(uerr)
		}
		return err
	}

	child := node.child(node.searchChild(keyVal))
	err = ix.insert(child, keyVal, rid)
	if uerr := ix.bufMgr.UnPinPage(ix.file, pageNo, false); err == nil {
		err = errors.Trace(uerr)
	}
	return err
}

// bootstrapRoot seeds an empty root with two fresh leaves. The single
// separator is keyVal+1 so the strict-less routing sends the first key
// into the left leaf.
func (ix *BTreeIndex) bootstrapRoot(rootNo common.PageId, root internalNode, keyVal int64, rid common.RecordId) (dirty bool, err error) {
	leftNo, leftPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		return false, errors.Trace(err)
	}
	rightNo, rightPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		ix.bufMgr.UnPinPage(ix.file, leftNo, false)
		return false, errors.Trace(err)
	}

	left := asLeaf(leftPage)
	left.init(rootNo)
	left.insertAt(0, keyVal, rid)
	left.setRightSib(rightNo)

	right := asLeaf(rightPage)
	right.init(rootNo)

	root.setKey(0, keyVal+1)
	root.setChild(0, leftNo)
	root.setChild(1, rightNo)
	root.setLevel(1)
	root.setKeyCount(1)

	err = errors.Trace(ix.bufMgr.UnPinPage(ix.file, leftNo, true))
	if uerr := ix.bufMgr.UnPinPage(ix.file, rightNo, true); err == nil {
		err = errors.Trace(uerr)
	}
	return true, err
}

// leafSplitInsert splits the full leaf at pageNo, inserts the new
// entry into whichever half owns it, and pushes the separator into the
// parent. The caller keeps the old leaf pinned and unpins it dirty.
func (ix *BTreeIndex) leafSplitInsert(pageNo common.PageId, page *common.Page, keyVal int64, rid common.RecordId) error {
	leaf := asLeaf(page)
	middle := ix.leafOccupancy / 2

	newPageNo, newPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		return errors.Trace(err)
	}
	newLeaf := asLeaf(newPage)
	newLeaf.init(leaf.parent())

	// move slots [middle, leafOccupancy) to the new right sibling
	copy(newPage[leafEntryOff(0):leafEntryOff(ix.leafOccupancy-middle)],
		page[leafEntryOff(middle):leafEntryOff(ix.leafOccupancy)])
	newLeaf.setKeyCount(ix.leafOccupancy - middle)
	leaf.setKeyCount(middle)
	vacated := page[leafEntryOff(middle):leafEntryOff(ix.leafOccupancy)]
	for i := range vacated {
		vacated[i] = 0
	}

	newLeaf.setRightSib(leaf.rightSib())
	leaf.setRightSib(newPageNo)

	sep := newLeaf.key(0)
	target := leaf
	if keyVal >= sep {
		target = newLeaf
	}
	target.insertAt(target.searchInsert(keyVal), keyVal, rid)

	logger.Debugf("leaf %d split, new sibling %d, separator %d", pageNo, newPageNo, sep)

	err = ix.insertIntoParent(leaf.parent(), sep, pageNo, newPageNo)
	if uerr := ix.bufMgr.UnPinPage(ix.file, newPageNo, true); err == nil {
		err = errors.Trace(uerr)
	}
	return err
}

// insertIntoParent places (sep, left, right) into the internal node at
// parentNo, splitting it and recursing upward when full. A root split
// allocates a fresh root and rewrites the meta page.
func (ix *BTreeIndex) insertIntoParent(parentNo common.PageId, sep int64, left, right common.PageId) error {
	page, err := ix.bufMgr.ReadPage(ix.file, parentNo)
	if err != nil {
		return errors.Trace(err)
	}
	node := asInternal(page)

	if node.keyCount() < ix.nodeOccupancy {
		node.insertAt(node.searchInsert(sep), sep, left, right)
		err = ix.setParent(left, parentNo)
		if err == nil {
			err = ix.setParent(right, parentNo)
		}
		if uerr := ix.bufMgr.UnPinPage(ix.file, parentNo, true); err == nil {
			err = errors.Trace(uerr)
		}
		return err
	}

	// split this internal node
	newNo, newPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		ix.bufMgr.UnPinPage(ix.file, parentNo, false)
		return errors.Trace(err)
	}
	newNode := asInternal(newPage)
	newNode.init(node.level(), node.parent())

	m := ix.nodeOccupancy / 2
	movedKeys := ix.nodeOccupancy - m - 1
	copy(newPage[internalKeyOff(0):internalKeyOff(movedKeys)],
		page[internalKeyOff(m+1):internalKeyOff(ix.nodeOccupancy)])
	copy(newPage[internalChildOff(0):internalChildOff(movedKeys+1)],
		page[internalChildOff(m+1):internalChildOff(ix.nodeOccupancy+1)])

	lifted := node.key(m)
	node.setKeyCount(m)
	newNode.setKeyCount(movedKeys)

	// pending separator goes to whichever half owns it
	target := node
	if sep >= lifted {
		target = newNode
	}
	target.insertAt(target.searchInsert(sep), sep, left, right)

	// every child of both halves gets its owner recorded
	for i := 0; i <= node.keyCount(); i++ {
		if err = ix.setParent(node.child(i), parentNo); err != nil {
			break
		}
	}
	if err == nil {
		for i := 0; i <= newNode.keyCount(); i++ {
			if err = ix.setParent(newNode.child(i), newNo); err != nil {
				break
			}
		}
	}
	if err != nil {
		ix.bufMgr.UnPinPage(ix.file, newNo, true)
		ix.bufMgr.UnPinPage(ix.file, parentNo, true)
		return err
	}

	logger.Debugf("internal %d split, new sibling %d, lifted %d", parentNo, newNo, lifted)

	oldParent := node.parent()
	if oldParent == common.InvalidPageId {
		err = ix.promoteRoot(parentNo, node, newNo, newNode, lifted)
	} else {
		newNode.setParent(oldParent)
		err = ix.insertIntoParent(oldParent, lifted, parentNo, newNo)
	}

	if uerr := ix.bufMgr.UnPinPage(ix.file, newNo, true); err == nil {
		err = errors.Trace(uerr)
	}
	if uerr := ix.bufMgr.UnPinPage(ix.file, parentNo, true); err == nil {
		err = errors.Trace(uerr)
	}
	return err
}

// promoteRoot allocates a new root above the two halves of a split
// root and repoints the meta page at it.
func (ix *BTreeIndex) promoteRoot(leftNo common.PageId, leftHalf internalNode, rightNo common.PageId, rightHalf internalNode, lifted int64) error {
	rootNo, rootPage, err := ix.bufMgr.AllocPage(ix.file)
	if err != nil {
		return errors.Trace(err)
	}
	root := asInternal(rootPage)
	root.init(leftHalf.level()+1, common.InvalidPageId)
	root.setKey(0, lifted)
	root.setChild(0, leftNo)
	root.setChild(1, rightNo)
	root.setKeyCount(1)

	leftHalf.setParent(rootNo)
	rightHalf.setParent(rootNo)

	metaPg, err := ix.bufMgr.ReadPage(ix.file, ix.headerPageNum)
	if err != nil {
		ix.bufMgr.UnPinPage(ix.file, rootNo, true)
		return errors.Trace(err)
	}
	asMeta(metaPg).setRootPageNo(rootNo)
	ix.rootPageNum = rootNo
	err = errors.Trace(ix.bufMgr.UnPinPage(ix.file, ix.headerPageNum, true))

	logger.Debugf("root promoted to page %d", rootNo)

	if uerr := ix.bufMgr.UnPinPage(ix.file, rootNo, true); err == nil {
		err = errors.Trace(uerr)
	}
	return err
}

// setParent rewrites the parent back-pointer of the node at childNo,
// classifying the page by its discriminator.
func (ix *BTreeIndex) setParent(childNo, parentNo common.PageId) error {
	page, err := ix.bufMgr.ReadPage(ix.file, childNo)
	if err != nil {
		return errors.Trace(err)
	}
	if isLeafPage(page) {
		asLeaf(page).setParent(parentNo)
	} else {
		asInternal(page).setParent(parentNo)
	}
	return errors.Trace(ix.bufMgr.UnPinPage(ix.file, childNo, true))
}
