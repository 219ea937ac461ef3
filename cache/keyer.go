package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// QueryKey builds a deterministic cache key for a similarity search.
// Format: query:<collection>:<hash>, where hash digests the query text,
// query vector, and top-k. Identical searches produce identical keys no
// matter which façade issued them.
func QueryKey(collection, text string, vector []float32, topK int) string {
	h := sha256.New()

	h.Write([]byte(text))
	h.Write([]byte{0})

	var buf [4]byte
	for _, v := range vector {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	h.Write([]byte{0})

	binary.LittleEndian.PutUint32(buf[:], uint32(topK))
	h.Write(buf[:])

	sum := h.Sum(nil)
	return fmt.Sprintf("query:%s:%s", collection, hex.EncodeToString(sum[:8]))
}
