package index

import (
	"errors"
	"fmt"
)

var (
	// ErrBadOpcodes 扫描操作符不合法
	ErrBadOpcodes = errors.New("bad scan opcodes")
	// ErrBadScanrange 扫描下界大于上界
	ErrBadScanrange = errors.New("bad scan range")
	// ErrNoSuchKeyFound no entry in the requested range
	ErrNoSuchKeyFound = errors.New("no such key found")
	// ErrScanNotInitialized ScanNext/EndScan without an active scan
	ErrScanNotInitialized = errors.New("scan not initialized")
	// ErrIndexScanCompleted the scan has exhausted the range
	ErrIndexScanCompleted = errors.New("index scan completed")
)

// BadIndexInfoError 索引文件元页与调用参数不一致
type BadIndexInfoError struct {
	IndexName string
}

func (e *BadIndexInfoError) Error() string {
	return fmt.Sprintf("bad index meta info in %s", e.IndexName)
}
