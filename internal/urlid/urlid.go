// Package urlid derives stable page identifiers from URLs.
package urlid

import (
	"crypto/md5"
	"encoding/hex"
)

// For derives the page ID for a URL. The same URL always maps to the
// same ID, so re-analysis overwrites rather than duplicates.
func For(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
