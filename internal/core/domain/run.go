package domain

import "time"

type EventKind string

const (
	EventConversionFailed  EventKind = "conversion_failed"
	EventCopyFailed        EventKind = "copy_failed"
	EventRecordFailed      EventKind = "record_insert_failed"
	EventMetadataDuplicate EventKind = "metadata_duplicate"
	EventFuzzySuspect      EventKind = "fuzzy_suspect"
)

// JournalEvent is one line of the durable failure log.
type JournalEvent struct {
	RunID    string
	Kind     EventKind
	Filename string
	Matched  string
	Score    float64
	Title    string
	Author   string
	Err      error
}

// Outcome is the per-file result of a run. OutcomeInterrupted marks a file
// abandoned because the run was cancelled; it is not counted in the summary.
type Outcome string

const (
	OutcomeIngested          Outcome = "ingested"
	OutcomeExcluded          Outcome = "excluded"
	OutcomeExactDuplicate    Outcome = "exact_duplicate"
	OutcomeMetadataDuplicate Outcome = "metadata_duplicate"
	OutcomeFailed            Outcome = "failed"
	OutcomeInterrupted       Outcome = "interrupted"
)

type RunSummary struct {
	RunID              string        `json:"run_id"`
	Scanned            int           `json:"scanned"`
	Excluded           int           `json:"excluded"`
	Ingested           int           `json:"ingested"`
	ExactDuplicates    int           `json:"exact_duplicates"`
	MetadataDuplicates int           `json:"metadata_duplicates"`
	FuzzySuspects      int           `json:"fuzzy_suspects"`
	Failed             int           `json:"failed"`
	Duration           time.Duration `json:"duration"`
}

func (s *RunSummary) Count(outcome Outcome) {
	switch outcome {
	case OutcomeIngested:
		s.Ingested++
	case OutcomeExcluded:
		s.Excluded++
	case OutcomeExactDuplicate:
		s.ExactDuplicates++
	case OutcomeMetadataDuplicate:
		s.MetadataDuplicates++
	case OutcomeFailed:
		s.Failed++
	}
}
