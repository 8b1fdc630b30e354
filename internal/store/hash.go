package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/hurttlocker/scout/internal/extract"
)

// HashUpdate computes SHA-256 of the canonical JSON form of u. Two updates
// holding the same components in the same order hash equal.
func HashUpdate(u extract.NetworkUpdate) string {
	b, _ := json.Marshal(u)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
