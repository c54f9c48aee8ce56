package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

type MetadataReader interface {
	Name() string
	Supports(path string) bool
	ReadMetadata(ctx context.Context, path string) (domain.Metadata, error)
}

type TextReader interface {
	Name() string
	Supports(path string) bool
	ConvertToText(ctx context.Context, path, workDir string) (string, error)
}

// MetadataChain tries readers in order and returns the first successful
// result. It never fails: when no reader succeeds the metadata is empty.
type MetadataChain struct {
	readers []MetadataReader
	logger  *slog.Logger
}

func NewMetadataChain(logger *slog.Logger, readers ...MetadataReader) *MetadataChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataChain{readers: readers, logger: logger}
}

func (c *MetadataChain) Extract(ctx context.Context, path string) domain.Metadata {
	for _, r := range c.readers {
		if !r.Supports(path) {
			continue
		}
		md, err := r.ReadMetadata(ctx, path)
		if err != nil {
			c.logger.Warn("metadata_read_failed",
				"reader", r.Name(),
				"file", filepath.Base(path),
				"error", err,
			)
			if ctx.Err() != nil {
				return domain.Metadata{}
			}
			continue
		}
		return md
	}
	return domain.Metadata{}
}

// ConverterChain tries converters in order; the first one that succeeds wins.
type ConverterChain struct {
	readers []TextReader
	logger  *slog.Logger
}

func NewConverterChain(logger *slog.Logger, readers ...TextReader) *ConverterChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConverterChain{readers: readers, logger: logger}
}

func (c *ConverterChain) ConvertToText(ctx context.Context, path, workDir string) (string, error) {
	var errs []error
	for _, r := range c.readers {
		if !r.Supports(path) {
			continue
		}
		text, err := r.ConvertToText(ctx, path, workDir)
		if err == nil {
			return text, nil
		}
		c.logger.Debug("converter_failed", "converter", r.Name(), "file", filepath.Base(path), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", domain.WrapError(domain.ErrExternalTool, "convert to text",
			fmt.Errorf("no converter for %s", filepath.Ext(path)))
	}
	return "", domain.WrapError(domain.ErrExternalTool, "convert to text", errors.Join(errs...))
}
