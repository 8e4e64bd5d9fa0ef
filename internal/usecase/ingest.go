package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"review-agent/internal/domain"
)

// uploadPurpose is the fixed purpose label attached to every upload so the
// remote service indexes the file for assistant retrieval.
const uploadPurpose = "assistants"

// FileUploader is the remote upload surface required by the Ingestor.
type FileUploader interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, purpose string) (string, error)
}

// UploadFailure records one input path that could not be ingested.
type UploadFailure struct {
	Path string
	Err  error
}

// Ingestor uploads local files to the remote service, one upload call per
// file. Failures are isolated per path and never abort sibling uploads.
type Ingestor struct {
	uploader FileUploader

	// open is an os.Open seam for tests.
	open func(path string) (io.ReadCloser, error)
}

func NewIngestor(uploader FileUploader) (*Ingestor, error) {
	if uploader == nil {
		return nil, errors.New("usecase: uploader must not be nil")
	}
	return &Ingestor{
		uploader: uploader,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Ingest uploads each path in order and collects the issued document
// references. The reference slice preserves the relative order of the paths
// that succeeded; the failure slice captures the rest. Empty input is valid
// and yields empty output.
func (i *Ingestor) Ingest(ctx context.Context, paths []string) ([]domain.DocumentRef, []UploadFailure) {
	refs := make([]domain.DocumentRef, 0, len(paths))
	var failures []UploadFailure

	for _, path := range paths {
		ref, err := i.ingestOne(ctx, path)
		if err != nil {
			failures = append(failures, UploadFailure{Path: path, Err: err})
			continue
		}
		refs = append(refs, ref)
	}
	return refs, failures
}

func (i *Ingestor) ingestOne(ctx context.Context, path string) (domain.DocumentRef, error) {
	f, err := i.open(path)
	if err != nil {
		return domain.DocumentRef{}, err
	}
	defer func() { _ = f.Close() }()

	filename := filepath.Base(path)
	fileID, err := i.uploader.UploadFile(ctx, filename, f, uploadPurpose)
	if err != nil {
		return domain.DocumentRef{}, err
	}
	return domain.DocumentRef{
		FileID:   fileID,
		Path:     path,
		Filename: filename,
	}, nil
}
