package smodel

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
)

// CheckpointKey derives a stable checkpoint key from the fit input
// and the optimization method, so that a checkpoint is never reused
// for different data or a different optimizer.
func CheckpointKey(obs, exp []float64, method string) []byte {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(obs)))
	binary.Write(h, binary.LittleEndian, obs)
	binary.Write(h, binary.LittleEndian, exp)
	io.WriteString(h, method)
	return h.Sum(nil)
}

// resultKey derives the cache key for a finished fit from the
// checkpoint key.
func resultKey(key []byte) []byte {
	return append(append([]byte(nil), key...), ":result"...)
}
