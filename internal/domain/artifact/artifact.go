// Package artifact defines descriptors for generated media fetched from
// vendor output URLs.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Artifact describes one fetched media object. The bytes themselves live in
// the artifact cache, keyed by ID; the descriptor travels on the task result.
type Artifact struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	SourceURL string    `json:"source_url"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Checksum returns the hex SHA-256 of the artifact bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
