/*
Package storage keeps copies of room transcripts in S3-compatible object storage.

When a room is deleted its history is gone from the message store; an archive
lets operators recover it. Archiving is optional and best-effort.
*/
package storage

import (
	"context"
	"fmt"
	"time"

	"roomchat/internal/app/store"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// TranscriptArchiver defines the public interface of the archive service.
// It satisfies chat.Archiver.
type TranscriptArchiver interface {
	// ArchiveRoom stores the full history of a room under a fresh key.
	ArchiveRoom(ctx context.Context, room string, messages []store.Message) error
}

// Transcript is the document written for every archived room.
type Transcript struct {
	Room       string          `json:"room"`
	ArchivedAt time.Time       `json:"archivedAt"`
	Messages   []store.Message `json:"messages"`
}

// TranscriptKey returns the object key for a room archived at t.
func TranscriptKey(room string, t time.Time) string {
	return fmt.Sprintf("transcripts/%s/%d.json", room, t.UnixNano())
}

// NewTranscriptArchiver is the factory function for TranscriptArchiver.
func NewTranscriptArchiver(ctx context.Context, cfg ServiceConfig) (TranscriptArchiver, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(ctx, cfg)
}
