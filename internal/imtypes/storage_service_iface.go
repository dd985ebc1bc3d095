// internal/imtypes/storage_service_iface.go
package imtypes

import (
	"context"
	"io"
	"time"
)

// FileInfo describes a stored profile picture.
type FileInfo struct {
	URL        string    `json:"url"`  // public URL, served under STORAGE.BASE_URL
	Path       string    `json:"path"` // location inside the backing store
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	FileName   string    `json:"fileName"` // name sent by the client
	UploadedAt time.Time `json:"uploadedAt"`
}

// StorageService 定义了文件存储操作的接口。
// 将接口定义放在 imtypes 中以打破 storage 和 services 之间的循环依赖。
type StorageService interface {
	// UploadFile 将读取器中的内容上传到存储系统，返回访问 URL 等信息。
	UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)

	// DeleteFile removes a file previously returned by UploadFile, addressed by its URL.
	// Deleting a missing file is not an error.
	DeleteFile(ctx context.Context, fileURL string) error
}
