package stamp

import (
	"path/filepath"
	"slices"
	"strings"
)

// ExclusionPolicy names the directories pruned at any depth and the files skipped in any directory.
type ExclusionPolicy struct {
	Dirs  []string
	Files []string
}

// DefaultExclusions mirrors what editors, Xcode and git leave inside a template checkout.
func DefaultExclusions() ExclusionPolicy {
	return ExclusionPolicy{
		Dirs:  []string{".~", ".git", "DerivedData", "xcuserdata"},
		Files: []string{".DS_Store"},
	}
}

func (p ExclusionPolicy) SkipDir(name string) bool {
	return slices.Contains(p.Dirs, name)
}

func (p ExclusionPolicy) SkipFile(name string) bool {
	return slices.Contains(p.Files, name)
}

// ClassificationPolicy lists the extensions copied byte for byte.
// Every other file is treated as text and goes through substitution.
type ClassificationPolicy struct {
	BinaryExtensions []string
}

func DefaultClassification() ClassificationPolicy {
	return ClassificationPolicy{
		BinaryExtensions: []string{".py", ".png", ".caf", ".wav", ".xcuserstate", ".opacity", ".ttf"},
	}
}

// IsBinary reports whether path must be copied without substitution.
// The match is exact and case sensitive.
func (p ClassificationPolicy) IsBinary(path string) bool {
	ext := extension(path)
	if ext == "" {
		return false
	}
	return slices.Contains(p.BinaryExtensions, ext)
}

// extension returns the suffix of the last path segment starting at its final dot.
// Leading dots do not start an extension, so ".gitignore" has none.
func extension(path string) string {
	base := strings.TrimLeft(filepath.Base(path), ".")
	return filepath.Ext(base)
}
