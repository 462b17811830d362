// Package storage defines the attachment blob store.
package storage

import "github.com/starford/moodlog/internal/models"

// Provider is the interface for attachment blob operations. Keys are flat
// file names inside the attachments directory.
type Provider interface {
	// List returns metadata for every blob.
	List() ([]models.BlobMetadata, error)
	// Read returns the raw bytes of the blob stored under key.
	Read(key string) ([]byte, error)
	// Write atomically stores content under key.
	Write(key string, content []byte) error
	// Delete removes the blob stored under key.
	Delete(key string) error
	// Exists reports whether a blob is stored under key.
	Exists(key string) bool
}
