package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash64 returns the xxhash64 of s as 16 lowercase hex chars.
func Hash64(s string) string {
	h := strconv.FormatUint(xxhash.Sum64String(s), 16)
	for len(h) < 16 {
		h = "0" + h
	}
	return h
}

// Signature returns a deterministic sha256 hex digest over parts. Each part
// is length-prefixed so ("ab","c") and ("a","bc") never collide.
func Signature(parts ...string) string {
	h := sha256.New()
	var n [20]byte
	for _, p := range parts {
		h.Write(strconv.AppendInt(n[:0], int64(len(p)), 10))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
