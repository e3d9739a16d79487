package service

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/storage"
	"github.com/andresuchdata/autopo-py/depletion/internal/upload"
	"github.com/rs/zerolog/log"
)

// UploadService turns forecast files into merged sales targets and archives
// the originals when object storage is configured.
type UploadService struct {
	forecasts *ForecastService
	archive   storage.ObjectStorage
	prefix    string
	now       func() time.Time
}

func NewUploadService(forecasts *ForecastService, archive storage.ObjectStorage, prefix string) *UploadService {
	return &UploadService{
		forecasts: forecasts,
		archive:   archive,
		prefix:    strings.Trim(prefix, "/"),
		now:       time.Now,
	}
}

// ImportFile parses, merges and archives one uploaded file.
func (s *UploadService) ImportFile(ctx context.Context, filename string, data []byte) (*domain.ImportResult, error) {
	result, err := s.importData(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		key := s.archiveKey(result.BatchID, filename)
		if err := s.archive.UploadObject(ctx, key, data, contentType(filename)); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("upload: archive failed")
		}
	}
	return result, nil
}

// ImportObject re-imports a previously archived file without archiving it again.
func (s *UploadService) ImportObject(ctx context.Context, key string) (*domain.ImportResult, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	data, err := s.archive.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.importData(ctx, path.Base(key), data)
}

// ArchivedUploads lists archived files, newest key last.
func (s *UploadService) ArchivedUploads(ctx context.Context) ([]storage.ObjectInfo, error) {
	if s.archive == nil {
		return []storage.ObjectInfo{}, nil
	}
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	return s.archive.ListObjects(ctx, prefix)
}

func (s *UploadService) importData(ctx context.Context, filename string, data []byte) (*domain.ImportResult, error) {
	parsed, err := upload.Parse(filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidUpload, err)
	}

	result, err := s.forecasts.ImportForecastRows(ctx, parsed.Rows)
	if err != nil {
		return nil, err
	}

	result.Rows = len(parsed.Rows) + len(parsed.Errors)
	result.Errors = append(append([]domain.RowError{}, parsed.Errors...), result.Errors...)
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Row < result.Errors[j].Row
	})

	log.Info().
		Str("file", filename).
		Str("batch_id", result.BatchID).
		Int("rejected", len(result.Errors)).
		Msg("upload: forecast file processed")

	return result, nil
}

func (s *UploadService) archiveKey(batchID, filename string) string {
	name := fmt.Sprintf("%s_%s", batchID, filepath.Base(filename))
	key := path.Join(s.now().UTC().Format("2006/01/02"), name)
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
