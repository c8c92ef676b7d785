package upload

import (
	"context"
	"fmt"
)

// MockUploader simulates media storage for testing.
type MockUploader struct {
	ShouldFail bool
	Reason     string
	counter    int
}

func (m *MockUploader) UploadFromBuffer(ctx context.Context, data []byte, folder string) Result {
	if m.ShouldFail {
		reason := m.Reason
		if reason == "" {
			reason = "mock upload failed"
		}
		return UploadFailed{Reason: reason}
	}
	m.counter++
	return Uploaded{URL: fmt.Sprintf("https://cdn.example.com/%s/%d", folder, m.counter)}
}
