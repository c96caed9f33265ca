package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier such as "sale_3f2b9c0e8d4a4b1c9e7f6a5b4c3d2e1f".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
