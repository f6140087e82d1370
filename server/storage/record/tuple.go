package record

import (
	"math"

	"github.com/zhukovaskychina/xbtree/util"
)

// Tuple 演示/测试用的定长记录：
//
//	0  int64   I
//	8  float64 D
//	16 [64]byte S，NUL填充
//
// The integer attribute sits at byte offset 0, which is what the demo
// index is built on.
const (
	TupleSize = 80

	TupleIntOffset    = 0
	TupleDoubleOffset = 8
	TupleStringOffset = 16
	TupleStringSize   = 64
)

type Tuple struct {
	I int64
	D float64
	S string
}

// Bytes 序列化为定长记录
func (t *Tuple) Bytes() []byte {
	buff := make([]byte, TupleSize)
	cursor := util.WriteUB8Long(buff, TupleIntOffset, t.I)
	cursor = util.WriteUB8(buff, cursor, math.Float64bits(t.D))
	s := t.S
	if len(s) > TupleStringSize {
		s = s[:TupleStringSize]
	}
	util.WriteBytesAt(buff, cursor, []byte(s))
	return buff
}

// ParseTuple 反序列化
func ParseTuple(buff []byte) Tuple {
	cursor, i := util.ReadUB8Long(buff, TupleIntOffset)
	cursor, dbits := util.ReadUB8(buff, cursor)
	_, sbytes := util.ReadBytes(buff, cursor, TupleStringSize)

	end := 0
	for end < len(sbytes) && sbytes[end] != 0 {
		end++
	}
	return Tuple{
		I: i,
		D: math.Float64frombits(dbits),
		S: string(sbytes[:end]),
	}
}
