package hmap

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// readString reads a length-prefixed (int32 byte length) UTF-8 string.
func readString(r io.Reader) (string, error) {
	n, err := readInt32(r)
	if err != nil {
		return "", fmt.Errorf("reading length: %w", err)
	}
	if n < 0 {
		return "", fmt.Errorf("negative string length %d", n)
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("reading %d bytes: %w", n, err)
	}
	return string(buf), nil
}
