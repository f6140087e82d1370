package buffer_pool

import "errors"

var (
	// ErrBufferExceeded all frames are pinned, no victim available
	ErrBufferExceeded = errors.New("buffer pool exceeded, all frames pinned")
	// ErrPageNotPinned unpin on a page whose pin count is already zero
	ErrPageNotPinned = errors.New("page not pinned")
	// ErrPagePinned flush requested while a page of the file is pinned
	ErrPagePinned = errors.New("page still pinned")
	// ErrHashNotFound page is not resident in the pool
	ErrHashNotFound = errors.New("page not found in buffer pool")
	// ErrBadBuffer an invalid frame is marked dirty
	ErrBadBuffer = errors.New("bad buffer frame")
)
