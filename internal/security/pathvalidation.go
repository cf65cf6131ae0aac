// Package security guards the files the analysis tools write.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideDirectory is returned for a path that resolves outside the
// directory it must stay in.
var ErrOutsideDirectory = errors.New("path escapes output directory")

// ValidatePathWithinDirectory checks that filePath, after cleaning and
// resolving symlinks, stays inside dir. Neither path has to exist yet: the
// deepest existing ancestor is resolved and the rest appended, so a
// symlinked parent pointing elsewhere is still caught.
func ValidatePathWithinDirectory(filePath, dir string) error {
	target, err := canonical(filePath)
	if err != nil {
		return err
	}
	base, err := canonical(dir)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideDirectory, filePath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not within %s", ErrOutsideDirectory, filePath, dir)
	}
	return nil
}

// canonical returns the absolute path with symlinks in its existing prefix
// resolved.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	existing, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

// OutputPath names a file inside outputDir. name is sanitised, so trace or
// group names can be embedded safely.
func OutputPath(outputDir, name string) (string, error) {
	path := filepath.Join(outputDir, SanitizeFilename(name))
	if err := ValidatePathWithinDirectory(path, outputDir); err != nil {
		return "", err
	}
	return path, nil
}

// maxFilenameLen caps sanitised names, well under common filesystem limits.
const maxFilenameLen = 128

// SanitizeFilename makes a safe filename from an arbitrary string. Runs of
// characters other than ASCII letters, digits, dot, underscore and dash
// become one underscore, and the result never starts or ends with a dot or
// underscore. Names longer than 128 bytes keep their extension: the stem is
// cut and tagged with a hash of the full input, so distinct long names stay
// distinct.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	if len(out) <= maxFilenameLen {
		return out
	}

	stem, ext := splitExt(out)
	tag := "-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(s)).String()[:8]
	stem = strings.TrimRight(stem[:maxFilenameLen-len(ext)-len(tag)], "._")
	return stem + tag + ext
}

// splitExt separates up to two short trailing extensions (".hist.png") from
// an ASCII name.
func splitExt(name string) (stem, ext string) {
	const maxExtLen = 12
	stem = name
	for i := 0; i < 2; i++ {
		e := filepath.Ext(stem)
		if e == "" || len(e) > maxExtLen || len(e) == len(stem) {
			break
		}
		ext = e + ext
		stem = strings.TrimSuffix(stem, e)
	}
	return stem, ext
}
