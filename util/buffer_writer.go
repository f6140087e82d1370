package util

// Little-endian cursor writers, the mirror of buffer_reader.go. The
// WriteXXX forms write in place at the cursor and return the advanced
// cursor; the buffer must already be large enough.

func WriteByteAt(buff []byte, cursor int, b byte) int {
	buff[cursor] = b
	return cursor + 1
}

func WriteBytesAt(buff []byte, cursor int, from []byte) int {
	copy(buff[cursor:], from)
	return cursor + len(from)
}

func WriteUB2(buff []byte, cursor int, i uint16) int {
	buff[cursor] = byte(i)
	buff[cursor+1] = byte(i >> 8)
	return cursor + 2
}

func WriteUB4(buff []byte, cursor int, i uint32) int {
	buff[cursor] = byte(i)
	buff[cursor+1] = byte(i >> 8)
	buff[cursor+2] = byte(i >> 16)
	buff[cursor+3] = byte(i >> 24)
	return cursor + 4
}

func WriteUB8(buff []byte, cursor int, i uint64) int {
	buff[cursor] = byte(i)
	buff[cursor+1] = byte(i >> 8)
	buff[cursor+2] = byte(i >> 16)
	buff[cursor+3] = byte(i >> 24)
	buff[cursor+4] = byte(i >> 32)
	buff[cursor+5] = byte(i >> 40)
	buff[cursor+6] = byte(i >> 48)
	buff[cursor+7] = byte(i >> 56)
	return cursor + 8
}

// WriteUB8Long 写入8字节有符号整数
func WriteUB8Long(buff []byte, cursor int, i int64) int {
	return WriteUB8(buff, cursor, uint64(i))
}
