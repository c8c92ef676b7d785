package upload

import "context"

// Result is the tagged outcome of a media upload: Uploaded or UploadFailed.
type Result interface {
	uploadResult()
}

// Uploaded carries the public URL of stored media.
type Uploaded struct {
	URL string
}

// UploadFailed carries the provider's failure reason.
type UploadFailed struct {
	Reason string
}

func (Uploaded) uploadResult()     {}
func (UploadFailed) uploadResult() {}

// Uploader is the external media-storage collaborator. Implementations talk
// to a CDN or object store; the feed engine only consumes the tagged result.
type Uploader interface {
	UploadFromBuffer(ctx context.Context, data []byte, folder string) Result
}

// Disabled rejects every upload. Used when no media storage is configured;
// text-only posting keeps working.
type Disabled struct{}

func (Disabled) UploadFromBuffer(ctx context.Context, data []byte, folder string) Result {
	return UploadFailed{Reason: "media storage is not configured"}
}
