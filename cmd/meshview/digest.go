package main

import (
	"encoding/hex"
	"fmt"
)

type errDigest struct{ want, got string }

func (e errDigest) Error() string {
	return fmt.Sprintf("digest mismatch: advertised %s, streams hash to %s", e.want, e.got)
}

func hexString(d [32]byte) string { return hex.EncodeToString(d[:]) }
