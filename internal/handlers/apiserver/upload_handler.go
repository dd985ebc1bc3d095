// internal/handlers/apiserver/upload_handler.go
package apiserver

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"socialnet/internal/config"
	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB default max memory for multipart forms
)

// UploadHandler 处理头像上传。
type UploadHandler struct {
	UserService services.UserService
	cfg         config.StorageConfig
	log         *zap.Logger
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(userService services.UserService, cfg config.StorageConfig, log *zap.Logger) *UploadHandler {
	return &UploadHandler{UserService: userService, cfg: cfg, log: log}
}

// ChangeProfilePicture 接收 multipart 表单中的 "file" 字段并替换当前头像。
func (h *UploadHandler) ChangeProfilePicture(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	maxUploadSize := h.cfg.MaxFileSizeMB << 20
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	// leave room for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "解析表单失败", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSONError(w, "请求中缺少 'file' 字段", http.StatusBadRequest)
		} else {
			writeJSONError(w, "获取文件失败", http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		writeJSONError(w, fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	h.log.Debug("profile picture received",
		zap.Uint("userId", userID),
		zap.String("name", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("type", mimeType))

	profile, err := h.UserService.ChangeProfilePicture(r.Context(), userID, services.UploadedFile{
		Reader:   file,
		Size:     header.Size,
		FileName: header.Filename,
		MimeType: mimeType,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}
