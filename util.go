package ice

import (
	"encoding/base32"
	"hash/fnv"
)

// fnvHash returns a short, stable, opaque token derived from s. Used to
// build foundations deterministically from (type, base, server) so that two
// candidates gathered the same way land on the same foundation without a
// shared counter.
func fnvHash(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(h.Sum(nil))[:8]
}
