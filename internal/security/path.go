// Package security validates user-supplied file paths before the CLI
// writes to them.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrPathTraversal = fmt.Errorf("path traversal detected")
	ErrReservedName  = fmt.Errorf("reserved filename not allowed")

	windowsReserved = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateExportPath checks a destination for an export file. Absolute
// paths are allowed since the user chose them explicitly; relative
// paths must stay under the working directory.
func ValidateExportPath(path string) error {
	if path == "" {
		return fmt.Errorf("export path is empty")
	}

	if !filepath.IsAbs(path) {
		cleaned := filepath.Clean(path)
		if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return ErrPathTraversal
		}
	}

	base := filepath.Base(path)
	stem := strings.TrimSuffix(strings.ToLower(base), filepath.Ext(base))
	if windowsReserved[stem] {
		return ErrReservedName
	}

	if strings.HasPrefix(base, "-") {
		return fmt.Errorf("filename cannot start with hyphen")
	}

	return nil
}

// ExportFilename derives a safe default export filename from a meal
// name and timestamp, e.g. "2025-06-02-grilled-chicken-salad.json".
func ExportFilename(mealName string, at time.Time) string {
	slug := slugify(mealName)
	if slug == "" {
		slug = "meal"
	}
	if windowsReserved[slug] {
		slug += "-export"
	}
	return fmt.Sprintf("%s-%s.json", at.Format("2006-01-02"), slug)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
