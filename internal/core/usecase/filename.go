package usecase

import "strings"

// DefaultMaxFilenameLength bounds destination names, in runes.
const DefaultMaxFilenameLength = 150

// TruncateFilename shortens the base of name so the result fits in maxLen
// runes, keeping the extension intact. Names without a dot are returned
// unchanged whatever their length.
func TruncateFilename(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxFilenameLength
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name
	}
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}

	base := []rune(name[:dot])
	ext := []rune(name[dot+1:])
	maxBase := maxLen - len(ext) - 1
	if maxBase < 1 {
		// the extension alone does not fit; keep the bound instead
		return string(runes[:maxLen])
	}
	if len(base) > maxBase {
		base = base[:maxBase]
	}
	return string(base) + "." + string(ext)
}
