package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/core/ports"
)

// DuplicateClassifier runs the layered duplicate checks against the record
// store. It only reads from the store.
type DuplicateClassifier struct {
	records   ports.RecordLookup
	threshold float64
}

func NewDuplicateClassifier(records ports.RecordLookup, threshold float64) *DuplicateClassifier {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultFuzzyThreshold
	}
	return &DuplicateClassifier{
		records:   records,
		threshold: threshold,
	}
}

// Classify runs the blocking tiers. loadMetadata is only called when the
// exact tier finds nothing, so external extraction is skipped for files
// already on record.
func (c *DuplicateClassifier) Classify(
	ctx context.Context,
	fp domain.Fingerprint,
	loadMetadata func(context.Context) domain.Metadata,
) (domain.Decision, error) {
	match, err := c.findExact(ctx, fp)
	if err != nil {
		return domain.Decision{}, err
	}
	if match != nil {
		return domain.Decision{Verdict: domain.VerdictExactDuplicate, Match: match}, nil
	}

	var meta domain.Metadata
	if loadMetadata != nil {
		meta = loadMetadata(ctx)
	}
	match, err = c.findByMetadata(ctx, meta)
	if err != nil {
		return domain.Decision{}, err
	}
	if match != nil {
		return domain.Decision{Verdict: domain.VerdictMetadataDuplicate, Match: match, Metadata: meta}, nil
	}
	return domain.Decision{Verdict: domain.VerdictNew, Metadata: meta}, nil
}

func (c *DuplicateClassifier) findExact(ctx context.Context, fp domain.Fingerprint) (*domain.BookRecord, error) {
	rec, err := c.records.FindExact(ctx, fp)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("exact match lookup: %w", err)
	}
	return rec, nil
}

func (c *DuplicateClassifier) findByMetadata(ctx context.Context, meta domain.Metadata) (*domain.BookRecord, error) {
	if !meta.Complete() {
		return nil, nil
	}
	rec, err := c.records.FindByMetadata(ctx, meta.Title, meta.Author)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata match lookup: %w", err)
	}
	return rec, nil
}

// FindSuspects scores sample against every stored sample and returns the
// matches at or above the threshold, best first. It is advisory only.
func (c *DuplicateClassifier) FindSuspects(ctx context.Context, _ string, sample string) ([]domain.FuzzySuspect, error) {
	if sample == "" {
		return nil, nil
	}
	stored, err := c.records.ListWithSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored samples: %w", err)
	}

	var suspects []domain.FuzzySuspect
	for _, rec := range stored {
		if err := ctx.Err(); err != nil {
			return suspects, err
		}
		if rec.SampleText == "" {
			continue
		}
		score := PartialRatio(sample, rec.SampleText)
		if score >= c.threshold {
			suspects = append(suspects, domain.FuzzySuspect{
				MatchedFilename: rec.OriginalFilename,
				Score:           score,
			})
		}
	}
	sort.SliceStable(suspects, func(i, j int) bool {
		return suspects[i].Score > suspects[j].Score
	})
	return suspects, nil
}
