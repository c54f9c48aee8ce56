package domain

import "fmt"

type Verdict int

const (
	VerdictNew Verdict = iota
	VerdictExactDuplicate
	VerdictMetadataDuplicate
)

func (v Verdict) String() string {
	switch v {
	case VerdictNew:
		return "new"
	case VerdictExactDuplicate:
		return "exact_duplicate"
	case VerdictMetadataDuplicate:
		return "metadata_duplicate"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decision is the outcome of the blocking tiers. Match is the stored record
// that caused a duplicate verdict; Metadata is whatever was extracted while
// deciding, empty when the exact tier short-circuited.
type Decision struct {
	Verdict  Verdict
	Match    *BookRecord
	Metadata Metadata
}

func (d Decision) IsDuplicate() bool {
	return d.Verdict != VerdictNew
}

// FuzzySuspect is an advisory match between a new sample and a stored one.
type FuzzySuspect struct {
	MatchedFilename string  `json:"matched_filename"`
	Score           float64 `json:"score"`
}
