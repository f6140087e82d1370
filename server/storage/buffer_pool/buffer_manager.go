package buffer_pool

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/zhukovaskychina/xbtree/logger"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/storage/blob"
)

const DEFAULT_POOL_PAGES = 1024

// frameKey 缓冲池页表的键
type frameKey struct {
	file   *blob.BlobFile
	pageNo common.PageId
}

// frameDesc is the control block of one frame: which page lives in it,
// how many pins are outstanding, and the clock/dirty state.
type frameDesc struct {
	file   *blob.BlobFile
	pageNo common.PageId

	pinCnt uint32
	dirty  bool
	valid  bool
	refbit bool
}

func (desc *frameDesc) clear() {
	desc.file = nil
	desc.pageNo = common.InvalidPageId
	desc.pinCnt = 0
	desc.dirty = false
	desc.valid = false
	desc.refbit = false
}

// BufMgr 缓冲池管理器，时钟置换算法。
//
// Every ReadPage/AllocPage pins the returned frame; the caller must
// UnPinPage exactly once per pin, passing dirty=true iff it modified
// the page bytes while pinned.
type BufMgr struct {
	mu sync.Mutex

	frames []common.Page
	descs  []frameDesc
	table  map[frameKey]int

	clockHand int

	// 统计信息
	stats struct {
		hits       uint64
		misses     uint64
		evictions  uint64
		flushes    uint64
		pageReads  uint64
		pageWrites uint64
	}
}

// NewBufMgr creates a pool with the given number of page frames.
func NewBufMgr(poolPages int) *BufMgr {
	if poolPages <= 0 {
		poolPages = DEFAULT_POOL_PAGES
	}
	bufMgr := &BufMgr{
		frames: make([]common.Page, poolPages),
		descs:  make([]frameDesc, poolPages),
		table:  make(map[frameKey]int, poolPages),
	}
	for i := range bufMgr.descs {
		bufMgr.descs[i].clear()
	}
	return bufMgr
}

// advanceClock 时钟指针前进一格
func (bufMgr *BufMgr) advanceClock() {
	bufMgr.clockHand = (bufMgr.clockHand + 1) % len(bufMgr.descs)
}

// allocFrame runs the clock algorithm and returns a free frame index.
// The victim's previous content is flushed when dirty. Two full sweeps
// give every refbit a chance to be cleared; if nothing is evictable by
// then every frame is pinned.
func (bufMgr *BufMgr) allocFrame() (int, error) {
	for i := 0; i < 2*len(bufMgr.descs)+1; i++ {
		bufMgr.advanceClock()
		desc := &bufMgr.descs[bufMgr.clockHand]

		if !desc.valid {
			return bufMgr.clockHand, nil
		}
		if desc.refbit {
			desc.refbit = false
			continue
		}
		if desc.pinCnt > 0 {
			continue
		}

		if desc.dirty {
			if err := desc.file.WritePage(desc.pageNo, &bufMgr.frames[bufMgr.clockHand]); err != nil {
				return 0, err
			}
			bufMgr.stats.flushes++
			bufMgr.stats.pageWrites++
		}
		delete(bufMgr.table, frameKey{desc.file, desc.pageNo})
		desc.clear()
		bufMgr.stats.evictions++
		return bufMgr.clockHand, nil
	}
	return 0, ErrBufferExceeded
}

// ReadPage 读取并固定一个页
func (bufMgr *BufMgr) ReadPage(file *blob.BlobFile, pageNo common.PageId) (*common.Page, error) {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	if frameNo, ok := bufMgr.table[frameKey{file, pageNo}]; ok {
		desc := &bufMgr.descs[frameNo]
		desc.refbit = true
		desc.pinCnt++
		bufMgr.stats.hits++
		return &bufMgr.frames[frameNo], nil
	}

	bufMgr.stats.misses++
	frameNo, err := bufMgr.allocFrame()
	if err != nil {
		return nil, err
	}
	if err := file.ReadPage(pageNo, &bufMgr.frames[frameNo]); err != nil {
		return nil, errors.Wrapf(err, "buffer pool miss on page %d", pageNo)
	}
	bufMgr.stats.pageReads++

	desc := &bufMgr.descs[frameNo]
	desc.file = file
	desc.pageNo = pageNo
	desc.pinCnt = 1
	desc.dirty = false
	desc.valid = true
	desc.refbit = true
	bufMgr.table[frameKey{file, pageNo}] = frameNo
	return &bufMgr.frames[frameNo], nil
}

// AllocPage 在文件中分配新页并固定
func (bufMgr *BufMgr) AllocPage(file *blob.BlobFile) (common.PageId, *common.Page, error) {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	pageNo, err := file.AllocatePage()
	if err != nil {
		return common.InvalidPageId, nil, err
	}

	frameNo, err := bufMgr.allocFrame()
	if err != nil {
		return common.InvalidPageId, nil, err
	}

	frame := &bufMgr.frames[frameNo]
	for i := range frame {
		frame[i] = 0
	}

	desc := &bufMgr.descs[frameNo]
	desc.file = file
	desc.pageNo = pageNo
	desc.pinCnt = 1
	desc.dirty = false
	desc.valid = true
	desc.refbit = true
	bufMgr.table[frameKey{file, pageNo}] = frameNo
	return pageNo, frame, nil
}

// UnPinPage 解除一次固定。dirty=true时标记脏页。
func (bufMgr *BufMgr) UnPinPage(file *blob.BlobFile, pageNo common.PageId, dirty bool) error {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	frameNo, ok := bufMgr.table[frameKey{file, pageNo}]
	if !ok {
		return ErrHashNotFound
	}
	desc := &bufMgr.descs[frameNo]
	if desc.pinCnt == 0 {
		return ErrPageNotPinned
	}
	desc.pinCnt--
	if dirty {
		desc.dirty = true
	}
	return nil
}

// FlushFile 将文件的所有脏页写回并使其缓冲失效。
// 文件尚有固定页时返回ErrPagePinned。
func (bufMgr *BufMgr) FlushFile(file *blob.BlobFile) error {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	for frameNo := range bufMgr.descs {
		desc := &bufMgr.descs[frameNo]
		if desc.file != file {
			continue
		}
		if !desc.valid {
			if desc.dirty {
				return ErrBadBuffer
			}
			continue
		}
		if desc.pinCnt > 0 {
			logger.Warnf("flush of %s with page %d still pinned (pinCnt=%d)", file.Name(), desc.pageNo, desc.pinCnt)
			return ErrPagePinned
		}

		if desc.dirty {
			if err := desc.file.WritePage(desc.pageNo, &bufMgr.frames[frameNo]); err != nil {
				return err
			}
			bufMgr.stats.flushes++
			bufMgr.stats.pageWrites++
		}
		delete(bufMgr.table, frameKey{desc.file, desc.pageNo})
		desc.clear()
	}

	logger.Debugf("flushed file %s", file.Name())
	return nil
}

// PinnedPages 返回某文件当前被固定的页数
func (bufMgr *BufMgr) PinnedPages(file *blob.BlobFile) int {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	pinned := 0
	for frameNo := range bufMgr.descs {
		desc := &bufMgr.descs[frameNo]
		if desc.valid && desc.file == file && desc.pinCnt > 0 {
			pinned++
		}
	}
	return pinned
}

// GetStats 获取统计信息
func (bufMgr *BufMgr) GetStats() map[string]uint64 {
	bufMgr.mu.Lock()
	defer bufMgr.mu.Unlock()

	return map[string]uint64{
		"hits":        bufMgr.stats.hits,
		"misses":      bufMgr.stats.misses,
		"evictions":   bufMgr.stats.evictions,
		"flushes":     bufMgr.stats.flushes,
		"page_reads":  bufMgr.stats.pageReads,
		"page_writes": bufMgr.stats.pageWrites,
	}
}
