package index

import (
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/util"
)

// 节点页布局。每个节点页的前两个字节是叶子标记，
// 读到一个未知页面时先看这两个字节再决定怎么解释它。
//
// Leaf page:
//
//	0  uint16 nodeType (=NODE_TYPE_LEAF)
//	2  uint16 keyCount
//	4  uint32 parent
//	8  uint32 rightSib     0 terminates the leaf chain
//	12 pad
//	16 entries             int64 key | uint32 ridPageNo | uint16 ridSlot | pad
//
// Internal page:
//
//	0  uint16 nodeType (=NODE_TYPE_INTERNAL)
//	2  uint16 level        1: children are leaves
//	4  uint16 keyCount
//	8  uint32 parent       0: this node is the root
//	12 pad
//	16 keys                int64 × NODE_CAPACITY
//	.. children            uint32 × (NODE_CAPACITY+1)
//
// Meta page:
//
//	0  [64]byte relationName, NUL 填充
//	64 int32 attrByteOffset
//	68 int32 attrType
//	72 uint32 rootPageNo
const (
	leafHeaderSize = 16
	leafEntrySize  = 16

	// LEAF_CAPACITY 叶子节点槽数
	LEAF_CAPACITY = (common.PAGE_SIZE - leafHeaderSize) / leafEntrySize

	internalHeaderSize = 16

	// NODE_CAPACITY 内部节点键数
	NODE_CAPACITY = (common.PAGE_SIZE - internalHeaderSize - 4) / 12

	childBase = internalHeaderSize + 8*NODE_CAPACITY
)

const (
	nodeTypeOff = 0

	leafKeyCountOff = 2
	leafParentOff   = 4
	leafRightSibOff = 8

	internalLevelOff    = 2
	internalKeyCountOff = 4
	internalParentOff   = 8
)

const (
	metaRelationNameOff = 0
	metaRelationNameLen = 64
	metaAttrOffsetOff   = 64
	metaAttrTypeOff     = 68
	metaRootPageNoOff   = 72
)

func isLeafPage(page *common.Page) bool {
	_, nodeType := util.ReadUB2(page[:], nodeTypeOff)
	return nodeType == common.NODE_TYPE_LEAF
}

// ---------------------------------------------------------------------------
// leaf view
// ---------------------------------------------------------------------------

type leafNode struct {
	page *common.Page
}

func asLeaf(page *common.Page) leafNode {
	return leafNode{page: page}
}

func (leaf leafNode) init(parent common.PageId) {
	util.WriteUB2(leaf.page[:], nodeTypeOff, common.NODE_TYPE_LEAF)
	util.WriteUB2(leaf.page[:], leafKeyCountOff, 0)
	util.WriteUB4(leaf.page[:], leafParentOff, uint32(parent))
	util.WriteUB4(leaf.page[:], leafRightSibOff, uint32(common.InvalidPageId))
}

func (leaf leafNode) keyCount() int {
	_, n := util.ReadUB2(leaf.page[:], leafKeyCountOff)
	return int(n)
}

func (leaf leafNode) setKeyCount(n int) {
	util.WriteUB2(leaf.page[:], leafKeyCountOff, uint16(n))
}

func (leaf leafNode) parent() common.PageId {
	_, p := util.ReadUB4(leaf.page[:], leafParentOff)
	return common.PageId(p)
}

func (leaf leafNode) setParent(parent common.PageId) {
	util.WriteUB4(leaf.page[:], leafParentOff, uint32(parent))
}

func (leaf leafNode) rightSib() common.PageId {
	_, p := util.ReadUB4(leaf.page[:], leafRightSibOff)
	return common.PageId(p)
}

func (leaf leafNode) setRightSib(sib common.PageId) {
	util.WriteUB4(leaf.page[:], leafRightSibOff, uint32(sib))
}

func leafEntryOff(i int) int {
	return leafHeaderSize + i*leafEntrySize
}

func (leaf leafNode) key(i int) int64 {
	_, k := util.ReadUB8Long(leaf.page[:], leafEntryOff(i))
	return k
}

func (leaf leafNode) rid(i int) common.RecordId {
	cursor := leafEntryOff(i) + 8
	cursor, pageNo := util.ReadUB4(leaf.page[:], cursor)
	_, slotNo := util.ReadUB2(leaf.page[:], cursor)
	return common.RecordId{PageNo: common.PageId(pageNo), SlotNo: slotNo}
}

func (leaf leafNode) setEntry(i int, key int64, rid common.RecordId) {
	cursor := util.WriteUB8Long(leaf.page[:], leafEntryOff(i), key)
	cursor = util.WriteUB4(leaf.page[:], cursor, uint32(rid.PageNo))
	util.WriteUB2(leaf.page[:], cursor, rid.SlotNo)
}

// insertAt shifts the suffix right by one slot and writes the new
// entry, keeping equal keys in insertion order.
func (leaf leafNode) insertAt(i int, key int64, rid common.RecordId) {
	count := leaf.keyCount()
	copy(leaf.page[leafEntryOff(i+1):leafEntryOff(count+1)],
		leaf.page[leafEntryOff(i):leafEntryOff(count)])
	leaf.setEntry(i, key, rid)
	leaf.setKeyCount(count + 1)
}

// searchInsert 返回第一个大于key的槽位
func (leaf leafNode) searchInsert(key int64) int {
	count := leaf.keyCount()
	for i := 0; i < count; i++ {
		if leaf.key(i) > key {
			return i
		}
	}
	return count
}

// ---------------------------------------------------------------------------
// internal view
// ---------------------------------------------------------------------------

type internalNode struct {
	page *common.Page
}

func asInternal(page *common.Page) internalNode {
	return internalNode{page: page}
}

func (node internalNode) init(level int, parent common.PageId) {
	util.WriteUB2(node.page[:], nodeTypeOff, common.NODE_TYPE_INTERNAL)
	util.WriteUB2(node.page[:], internalLevelOff, uint16(level))
	util.WriteUB2(node.page[:], internalKeyCountOff, 0)
	util.WriteUB4(node.page[:], internalParentOff, uint32(parent))
}

func (node internalNode) level() int {
	_, l := util.ReadUB2(node.page[:], internalLevelOff)
	return int(l)
}

func (node internalNode) setLevel(level int) {
	util.WriteUB2(node.page[:], internalLevelOff, uint16(level))
}

func (node internalNode) keyCount() int {
	_, n := util.ReadUB2(node.page[:], internalKeyCountOff)
	return int(n)
}

func (node internalNode) setKeyCount(n int) {
	util.WriteUB2(node.page[:], internalKeyCountOff, uint16(n))
}

func (node internalNode) parent() common.PageId {
	_, p := util.ReadUB4(node.page[:], internalParentOff)
	return common.PageId(p)
}

func (node internalNode) setParent(parent common.PageId) {
	util.WriteUB4(node.page[:], internalParentOff, uint32(parent))
}

func internalKeyOff(i int) int {
	return internalHeaderSize + i*8
}

func internalChildOff(i int) int {
	return childBase + i*4
}

func (node internalNode) key(i int) int64 {
	_, k := util.ReadUB8Long(node.page[:], internalKeyOff(i))
	return k
}

func (node internalNode) setKey(i int, key int64) {
	util.WriteUB8Long(node.page[:], internalKeyOff(i), key)
}

func (node internalNode) child(i int) common.PageId {
	_, p := util.ReadUB4(node.page[:], internalChildOff(i))
	return common.PageId(p)
}

func (node internalNode) setChild(i int, child common.PageId) {
	util.WriteUB4(node.page[:], internalChildOff(i), uint32(child))
}

// searchChild 下降规则：第一个满足 key < keys[i] 的子树
func (node internalNode) searchChild(key int64) int {
	count := node.keyCount()
	for i := 0; i < count; i++ {
		if key < node.key(i) {
			return i
		}
	}
	return count
}

// searchInsert 返回第一个大于sep的键位
func (node internalNode) searchInsert(sep int64) int {
	count := node.keyCount()
	for i := 0; i < count; i++ {
		if node.key(i) > sep {
			return i
		}
	}
	return count
}

// insertAt places (sep, left, right) at key slot i, shifting the key
// suffix and the child suffix from i+1 right by one.
func (node internalNode) insertAt(i int, sep int64, left, right common.PageId) {
	count := node.keyCount()
	copy(node.page[internalKeyOff(i+1):internalKeyOff(count+1)],
		node.page[internalKeyOff(i):internalKeyOff(count)])
	copy(node.page[internalChildOff(i+2):internalChildOff(count+2)],
		node.page[internalChildOff(i+1):internalChildOff(count+1)])
	node.setKey(i, sep)
	node.setChild(i, left)
	node.setChild(i+1, right)
	node.setKeyCount(count + 1)
}

// ---------------------------------------------------------------------------
// meta view
// ---------------------------------------------------------------------------

type metaPage struct {
	page *common.Page
}

func asMeta(page *common.Page) metaPage {
	return metaPage{page: page}
}

func (meta metaPage) relationName() string {
	raw := meta.page[metaRelationNameOff : metaRelationNameOff+metaRelationNameLen]
	end := 0
	for end < len(raw) && raw[end] != 0 {
		end++
	}
	return string(raw[:end])
}

func (meta metaPage) setRelationName(name string) {
	raw := meta.page[metaRelationNameOff : metaRelationNameOff+metaRelationNameLen]
	for i := range raw {
		raw[i] = 0
	}
	if len(name) > metaRelationNameLen-1 {
		name = name[:metaRelationNameLen-1]
	}
	copy(raw, name)
}

func (meta metaPage) attrByteOffset() int32 {
	_, off := util.ReadUB4(meta.page[:], metaAttrOffsetOff)
	return int32(off)
}

func (meta metaPage) setAttrByteOffset(off int32) {
	util.WriteUB4(meta.page[:], metaAttrOffsetOff, uint32(off))
}

func (meta metaPage) attrType() common.Datatype {
	_, t := util.ReadUB4(meta.page[:], metaAttrTypeOff)
	return common.Datatype(int32(t))
}

func (meta metaPage) setAttrType(t common.Datatype) {
	util.WriteUB4(meta.page[:], metaAttrTypeOff, uint32(int32(t)))
}

func (meta metaPage) rootPageNo() common.PageId {
	_, p := util.ReadUB4(meta.page[:], metaRootPageNoOff)
	return common.PageId(p)
}

func (meta metaPage) setRootPageNo(pageNo common.PageId) {
	util.WriteUB4(meta.page[:], metaRootPageNoOff, uint32(pageNo))
}
