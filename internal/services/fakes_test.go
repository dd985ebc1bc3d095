package services

import (
	"context"
	"io"
	"sync"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// createErrRelations fails every insert with err, inside or outside a transaction.
type createErrRelations struct {
	*storage.MemoryUserRelationRepository
	err error
}

func (r createErrRelations) Create(ctx context.Context, rel *models.UserRelation) error {
	return r.err
}

func (r createErrRelations) Transaction(ctx context.Context, fn func(repo storage.UserRelationRepository) error) error {
	return fn(r)
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeStorage) UploadFile(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*imtypes.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(reader)
	url := "/uploads/" + fileName
	f.uploaded = append(f.uploaded, url)
	return &imtypes.FileInfo{URL: url, Path: fileName, Size: int64(len(data)), MimeType: mimeType, FileName: fileName}, nil
}

func (f *fakeStorage) DeleteFile(ctx context.Context, fileURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileURL)
	return nil
}
