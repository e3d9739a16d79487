package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/rs/zerolog/log"
)

// Files is the subset of Service the forecast source reads from.
type Files interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

// Importer consumes a downloaded forecast file.
type Importer interface {
	ImportFile(ctx context.Context, filename string, data []byte) (*domain.ImportResult, error)
}

// ForecastSource pulls CSV and XLSX forecast uploads from a Drive folder.
type ForecastSource struct {
	files    Files
	importer Importer
}

func NewForecastSource(files Files, importer Importer) *ForecastSource {
	return &ForecastSource{files: files, importer: importer}
}

// SupportedFile reports whether name is a forecast file the parser reads.
func SupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// ListForecastFiles returns the supported files of a folder in name order.
func (s *ForecastSource) ListForecastFiles(ctx context.Context, folderID string) ([]*File, error) {
	files, err := s.files.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	supported := make([]*File, 0, len(files))
	for _, f := range files {
		if SupportedFile(f.Name) {
			supported = append(supported, f)
		}
	}
	sort.SliceStable(supported, func(i, j int) bool { return supported[i].Name < supported[j].Name })
	return supported, nil
}

// ImportFile downloads one Drive file and imports it.
func (s *ForecastSource) ImportFile(ctx context.Context, fileID string) (*domain.ImportResult, error) {
	meta, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !SupportedFile(meta.Name) {
		return nil, fmt.Errorf("%w: %s is not a csv or xlsx file", domain.ErrInvalidUpload, meta.Name)
	}

	var buf bytes.Buffer
	if err := s.files.DownloadFile(ctx, fileID, &buf); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", meta.Name, err)
	}

	return s.importer.ImportFile(ctx, meta.Name, buf.Bytes())
}

// ImportFolder imports every supported file of a folder in name order, so
// later names win overlaps. It stops at the first storage failure.
func (s *ForecastSource) ImportFolder(ctx context.Context, folderID string) ([]*domain.ImportResult, error) {
	files, err := s.ListForecastFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.ImportResult, 0, len(files))
	for _, f := range files {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := s.ImportFile(ctx, f.ID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidUpload) {
				log.Warn().Err(err).Str("file", f.Name).Msg("drive: skipping invalid forecast file")
				continue
			}
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
