package blob

import "errors"

var (
	// ErrFileExists 文件已经存在
	ErrFileExists = errors.New("blob file already exists")
	// ErrFileNotFound 文件不存在
	ErrFileNotFound = errors.New("blob file not found")
	// ErrInvalidPage page number out of the allocated range
	ErrInvalidPage = errors.New("invalid page number")
	// ErrBadFileHeader header magic/version/checksum mismatch
	ErrBadFileHeader = errors.New("bad blob file header")
)
