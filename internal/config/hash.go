package config

import "hash/fnv"

// hashBytes fingerprints config content for the redundant-reload skip.
// Zero is reserved for "no content".
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
