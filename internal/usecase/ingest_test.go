package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeUploader struct {
	failOn   map[string]error // keyed by filename
	uploaded []string
	purposes []string
	nextID   int
	readAll  bool // when set, drain the content reader and record it
	contents []string
}

func (f *fakeUploader) UploadFile(_ context.Context, filename string, content io.Reader, purpose string) (string, error) {
	if err, ok := f.failOn[filename]; ok {
		return "", err
	}
	if f.readAll {
		raw, err := io.ReadAll(content)
		if err != nil {
			return "", err
		}
		f.contents = append(f.contents, string(raw))
	}
	f.uploaded = append(f.uploaded, filename)
	f.purposes = append(f.purposes, purpose)
	f.nextID++
	return fmt.Sprintf("file_%d", f.nextID), nil
}

// withFakeOpen replaces the ingestor's file-open seam with in-memory content.
// Paths listed in failOpen return an error instead.
func withFakeOpen(ing *Ingestor, failOpen map[string]error) {
	ing.open = func(path string) (io.ReadCloser, error) {
		if err, ok := failOpen[path]; ok {
			return nil, err
		}
		return io.NopCloser(strings.NewReader("content of " + path)), nil
	}
}

// ---------------------------------------------------------------------------
// NewIngestor
// ---------------------------------------------------------------------------

func TestNewIngestor_NilUploader(t *testing.T) {
	_, err := NewIngestor(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

// ---------------------------------------------------------------------------
// Ingest
// ---------------------------------------------------------------------------

func TestIngest_EmptyInput(t *testing.T) {
	up := &fakeUploader{}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, nil)

	refs, failures := ing.Ingest(context.Background(), nil)
	require.Empty(t, refs)
	require.Empty(t, failures)
	require.Empty(t, up.uploaded)
}

func TestIngest_AllSucceed(t *testing.T) {
	up := &fakeUploader{readAll: true}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, nil)

	paths := []string{"docs/a.pdf", "docs/b.pdf", "docs/c.pdf"}
	refs, failures := ing.Ingest(context.Background(), paths)
	require.Empty(t, failures)
	require.Len(t, refs, 3)

	// one upload per file, in input order, base name only
	require.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, up.uploaded)
	require.Equal(t, []string{"content of docs/a.pdf", "content of docs/b.pdf", "content of docs/c.pdf"}, up.contents)

	require.Equal(t, "file_1", refs[0].FileID)
	require.Equal(t, "docs/a.pdf", refs[0].Path)
	require.Equal(t, "a.pdf", refs[0].Filename)
	require.Equal(t, "file_3", refs[2].FileID)
}

func TestIngest_PurposeLabel(t *testing.T) {
	up := &fakeUploader{}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, nil)

	_, failures := ing.Ingest(context.Background(), []string{"a.pdf"})
	require.Empty(t, failures)
	require.Equal(t, []string{"assistants"}, up.purposes)
}

func TestIngest_PartialFailure(t *testing.T) {
	uploadErr := errors.New("upstream rejected file")
	openErr := errors.New("no such file")

	up := &fakeUploader{failOn: map[string]error{"b.pdf": uploadErr}}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, map[string]error{"docs/d.pdf": openErr})

	paths := []string{"docs/a.pdf", "docs/b.pdf", "docs/c.pdf", "docs/d.pdf"}
	refs, failures := ing.Ingest(context.Background(), paths)

	// successes keep their relative order and get distinct ids
	require.Len(t, refs, 2)
	require.Equal(t, "docs/a.pdf", refs[0].Path)
	require.Equal(t, "docs/c.pdf", refs[1].Path)
	require.NotEqual(t, refs[0].FileID, refs[1].FileID)

	// failures carry the offending path and the causal error
	require.Len(t, failures, 2)
	require.Equal(t, "docs/b.pdf", failures[0].Path)
	require.ErrorIs(t, failures[0].Err, uploadErr)
	require.Equal(t, "docs/d.pdf", failures[1].Path)
	require.ErrorIs(t, failures[1].Err, openErr)
}

func TestIngest_AllFail(t *testing.T) {
	up := &fakeUploader{failOn: map[string]error{
		"a.pdf": errors.New("nope"),
		"b.pdf": errors.New("also nope"),
	}}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, nil)

	refs, failures := ing.Ingest(context.Background(), []string{"a.pdf", "b.pdf"})
	require.Empty(t, refs)
	require.Len(t, failures, 2)
}

func TestIngest_OpenFailureSkipsUpload(t *testing.T) {
	up := &fakeUploader{}
	ing, err := NewIngestor(up)
	require.NoError(t, err)
	withFakeOpen(ing, map[string]error{"missing.pdf": errors.New("no such file")})

	refs, failures := ing.Ingest(context.Background(), []string{"missing.pdf"})
	require.Empty(t, refs)
	require.Len(t, failures, 1)
	require.Empty(t, up.uploaded, "unreadable files must never reach the uploader")
}
