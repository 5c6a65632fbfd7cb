package graph

import (
	"encoding/binary"
	"encoding/hex"
)

const fnvOffset = uint64(14695981039346656037)
const fnvPrime = uint64(1099511628211)

func fnv1aString(s string) uint64 {
	return fnv1aAccum(fnvOffset, s)
}

func fnv1aAccum(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	// separator byte so "ab","c" doesn't collide with "a","bc"
	h ^= 0xff
	h *= fnvPrime
	return h
}

func fnv1aHex(h uint64) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return hex.EncodeToString(buf)
}
