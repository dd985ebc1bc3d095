package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
)

// ErrFileTooLarge is returned when an upload exceeds the configured size.
var ErrFileTooLarge = errors.New("file exceeds the maximum upload size")

// LocalStorageService 实现了 imtypes.StorageService 接口，把头像保存在本地磁盘。
type LocalStorageService struct {
	basePath string // 本地存储的基础路径，例如 "./uploads"
	baseURL  string // 用于构建文件访问 URL 的基础 URL，例如 "/Images"
	maxBytes int64
}

// NewLocalStorageService 创建一个新的 LocalStorageService 实例。
func NewLocalStorageService(cfg config.StorageConfig) (*LocalStorageService, error) {
	// 确保 basePath 存在
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败 '%s': %w", cfg.LocalPath, err)
	}
	return &LocalStorageService{
		basePath: cfg.LocalPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxFileSizeMB << 20,
	}, nil
}

// UploadFile 将文件保存到本地文件系统，文件名使用 UUID 保证唯一。
func (s *LocalStorageService) UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*imtypes.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && fileSize > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	// 生成一个唯一的文件名，保留原始扩展名
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		if extensions, _ := mime.ExtensionsByType(mimeType); len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	uniqueFileName := uuid.New().String() + ext
	dstPath := filepath.Join(s.basePath, uniqueFileName)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("创建目标文件失败 '%s': %w", dstPath, err)
	}
	defer dst.Close()

	src := reader
	if s.maxBytes > 0 {
		src = io.LimitReader(reader, s.maxBytes+1)
	}
	written, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		os.Remove(dstPath)
		return nil, ErrFileTooLarge
	}

	return &imtypes.FileInfo{
		URL:        s.baseURL + "/" + url.PathEscape(uniqueFileName),
		Path:       dstPath,
		Size:       written,
		MimeType:   mimeType,
		FileName:   fileName,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// DeleteFile removes the file behind fileURL. URLs outside baseURL are ignored.
func (s *LocalStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return nil
	}
	name, err := url.PathUnescape(strings.TrimPrefix(fileURL, prefix))
	if err != nil {
		return fmt.Errorf("解析文件 URL 失败 '%s': %w", fileURL, err)
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.basePath, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除文件失败 '%s': %w", name, err)
	}
	return nil
}
