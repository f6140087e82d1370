package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/xbtree/logger"
	"github.com/zhukovaskychina/xbtree/server/common"
	"github.com/zhukovaskychina/xbtree/server/conf"
	"github.com/zhukovaskychina/xbtree/server/storage/buffer_pool"
	"github.com/zhukovaskychina/xbtree/server/storage/index"
	"github.com/zhukovaskychina/xbtree/server/storage/record"
	"github.com/zhukovaskychina/xbtree/util"
)

const help = `
******************************************************************************************
 __  ______ _______ _____  ______ ______
 \ \/ /  _ \__   __|  __ \|  ____|  ____|
  \  /| |_) | | |  | |__) | |__  | |__
  /  \|  _ <  | |  |  _  /|  __| |  __|
 /_/\_\_| \_\ |_|  |_| \_\|______|______|
******************************************************************************************
*帮助:
*1. -- help
*2. -- configPath   指定xbtree.ini配置文件
*3. -- order        建表插入顺序 forward|reverse|random
******************************************************************************************
`

func main() {
	fmt.Print(help)

	var configPath string
	var order string
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.StringVar(&order, "order", "random", "relation build order: forward|reverse|random")
	flag.Parse()

	args := &conf.CommandLineArgs{
		ConfigPath: configPath,
	}
	config := conf.NewCfg().Load(args)

	logConfig := logger.LogConfig{
		ErrorLogPath: config.LogError,
		InfoLogPath:  config.LogInfos,
		LogLevel:     config.LogLevel,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	if err := run(config, order); err != nil {
		logger.Fatalf("demo failed: %v", err)
	}
}

func run(config *conf.Cfg, order string) error {
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return err
	}

	relationName := filepath.Join(config.DataDir, "demo_rel")
	indexName := index.IndexName(relationName, record.TupleIntOffset)
	// 重新跑demo前清掉上次的文件
	os.Remove(relationName)
	os.Remove(indexName)

	bufMgr := buffer_pool.NewBufMgr(config.BufferPoolPages)

	logger.Infof("building relation %s with %d records in %s order", relationName, config.RelationSize, order)
	if err := buildRelation(relationName, bufMgr, config.RelationSize, order); err != nil {
		return err
	}

	ix, outIndexName, err := index.NewBTreeIndex(relationName, bufMgr, record.TupleIntOffset, common.INTEGER)
	if err != nil {
		return err
	}
	logger.Infof("index file: %s", outIndexName)

	scans := []struct {
		low, high int64
		lowOp     common.Operator
		highOp    common.Operator
	}{
		{25, 40, common.GT, common.LT},
		{20, 35, common.GTE, common.LTE},
		{-3, 3, common.GT, common.LT},
		{996, 1001, common.GT, common.LT},
		{0, 1, common.GT, common.LT},
		{300, 400, common.GT, common.LT},
		{3000, 4000, common.GTE, common.LT},
	}
	for _, s := range scans {
		count, err := scanCount(ix, s.low, s.lowOp, s.high, s.highOp)
		if err != nil {
			ix.Close()
			return err
		}
		logger.Infof("scan %s %d .. %s %d -> %d records", s.lowOp, s.low, s.highOp, s.high, count)
	}

	if err = ix.Close(); err != nil {
		return err
	}

	stats := bufMgr.GetStats()
	logger.Infof("buffer pool: hits=%d misses=%d evictions=%d flushes=%d",
		stats["hits"], stats["misses"], stats["evictions"], stats["flushes"])
	return nil
}

func buildRelation(relationName string, bufMgr *buffer_pool.BufMgr, size int, order string) error {
	heap, err := record.CreateHeapFile(relationName, bufMgr)
	if err != nil {
		return err
	}

	keys := make([]int64, size)
	for i := range keys {
		keys[i] = int64(i)
	}
	switch order {
	case "forward":
	case "reverse":
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	default:
		rand.Shuffle(len(keys), func(i, j int) {
			keys[i], keys[j] = keys[j], keys[i]
		})
	}

	for _, k := range keys {
		tuple := record.Tuple{I: k, D: float64(k), S: fmt.Sprintf("%05d string record", k)}
		if _, err = heap.InsertRecord(tuple.Bytes()); err != nil {
			heap.Close()
			return err
		}
	}
	return heap.Close()
}

func intKey(v int64) []byte {
	buff := make([]byte, 8)
	util.WriteUB8Long(buff, 0, v)
	return buff
}

func scanCount(ix *index.BTreeIndex, low int64, lowOp common.Operator, high int64, highOp common.Operator) (int, error) {
	err := ix.StartScan(intKey(low), lowOp, intKey(high), highOp)
	if err == index.ErrNoSuchKeyFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count := 0
	var rid common.RecordId
	for {
		if err = ix.ScanNext(&rid); err != nil {
			break
		}
		count++
	}
	if err != index.ErrIndexScanCompleted {
		ix.EndScan()
		return count, err
	}
	return count, ix.EndScan()
}
