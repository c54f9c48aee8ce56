package usecase

import "strings"

var (
	DefaultExcludedNames      = []string{".calnotes", ".stfolder", "metadata.db"}
	DefaultExcludedExtensions = []string{".part", ".crdownload", ".tmp", ".txt", ".log", ".bak", ".old"}
)

// SkipFilter rejects candidates before any expensive work is done.
type SkipFilter struct {
	names    map[string]struct{}
	suffixes []string
}

func NewSkipFilter(names, suffixes []string) *SkipFilter {
	f := &SkipFilter{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			f.names[n] = struct{}{}
		}
	}
	for _, s := range suffixes {
		s = strings.TrimSpace(s)
		if s != "" {
			f.suffixes = append(f.suffixes, s)
		}
	}
	return f
}

// Skip matches exact names and plain filename suffixes, case-sensitively.
func (f *SkipFilter) Skip(filename string) bool {
	if _, ok := f.names[filename]; ok {
		return true
	}
	for _, s := range f.suffixes {
		if strings.HasSuffix(filename, s) {
			return true
		}
	}
	return false
}
