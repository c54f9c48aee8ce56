package domain

import "time"

// BookRecord is the unit persisted for every successfully ingested file.
// Records are append-only.
type BookRecord struct {
	OriginalFilename  string `json:"original_filename"`
	TruncatedFilename string `json:"truncated_filename"`
	FileHash          string `json:"file_hash"`
	SampleText        string `json:"sample_text,omitempty"`
	MetadataTitle     string `json:"metadata_title,omitempty"`
	MetadataAuthor    string `json:"metadata_author,omitempty"`
}

// Candidate is a file found in the source directory awaiting a decision.
type Candidate struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Complete reports whether both fields are present. Incomplete metadata
// never takes part in duplicate detection.
func (m Metadata) Complete() bool {
	return m.Title != "" && m.Author != ""
}

// Fingerprint carries the identity facts checked by the exact-match tier.
type Fingerprint struct {
	OriginalFilename  string
	TruncatedFilename string
	FileHash          string
}
