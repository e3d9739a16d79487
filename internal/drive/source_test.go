package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	files    []*File
	contents map[string]string
}

func (f *fakeFiles) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	return f.files, nil
}

func (f *fakeFiles) GetFile(ctx context.Context, fileID string) (*File, error) {
	for _, file := range f.files {
		if file.ID == fileID {
			return file, nil
		}
	}
	return nil, fmt.Errorf("file %s not found", fileID)
}

func (f *fakeFiles) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	_, err := io.WriteString(w, f.contents[fileID])
	return err
}

type fakeImporter struct {
	imported []string
	err      map[string]error
}

func (f *fakeImporter) ImportFile(ctx context.Context, filename string, data []byte) (*domain.ImportResult, error) {
	if err := f.err[filename]; err != nil {
		return nil, err
	}
	f.imported = append(f.imported, filename+":"+string(data))
	return &domain.ImportResult{BatchID: filename}, nil
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		files: []*File{
			{ID: "1", Name: "january.csv"},
			{ID: "2", Name: "notes.txt"},
			{ID: "3", Name: "February.XLSX"},
		},
		contents: map[string]string{"1": "a", "2": "b", "3": "c"},
	}
}

func TestForecastSource_ListForecastFiles(t *testing.T) {
	src := NewForecastSource(newFakeFiles(), &fakeImporter{})

	files, err := src.ListForecastFiles(context.Background(), "folder")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "February.XLSX", files[0].Name)
	assert.Equal(t, "january.csv", files[1].Name)
}

func TestForecastSource_ImportFolderInNameOrder(t *testing.T) {
	files := &fakeFiles{
		files: []*File{
			{ID: "b", Name: "2026-02.csv", ModifiedTime: "2026-01-01T00:00:00Z"},
			{ID: "a", Name: "2026-01.csv", ModifiedTime: "2026-03-01T00:00:00Z"},
		},
		contents: map[string]string{"a": "jan", "b": "feb"},
	}
	importer := &fakeImporter{}

	_, err := NewForecastSource(files, importer).ImportFolder(context.Background(), "folder")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01.csv:jan", "2026-02.csv:feb"}, importer.imported)
}

func TestForecastSource_ImportFolder(t *testing.T) {
	importer := &fakeImporter{err: map[string]error{
		"February.XLSX": fmt.Errorf("%w: bad header", domain.ErrInvalidUpload),
	}}
	src := NewForecastSource(newFakeFiles(), importer)

	results, err := src.ImportFolder(context.Background(), "folder")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"january.csv:a"}, importer.imported)
}

func TestForecastSource_ImportFolderStopsOnStorageFailure(t *testing.T) {
	boom := errors.New("db down")
	importer := &fakeImporter{err: map[string]error{"january.csv": boom}}
	src := NewForecastSource(newFakeFiles(), importer)

	_, err := src.ImportFolder(context.Background(), "folder")
	assert.ErrorIs(t, err, boom)
}

func TestForecastSource_ImportFileRejectsUnsupported(t *testing.T) {
	src := NewForecastSource(newFakeFiles(), &fakeImporter{})

	_, err := src.ImportFile(context.Background(), "2")
	assert.ErrorIs(t, err, domain.ErrInvalidUpload)
}
