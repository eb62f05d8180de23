package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathTraversal is returned when an output path would escape the
	// allowed output directory.
	ErrPathTraversal = errors.New("safety: output path escapes the allowed directory")

	// ErrUnsafeContent is returned when generated content carries a YAML
	// construct that could execute or include arbitrary files.
	ErrUnsafeContent = errors.New("safety: generated content contains an unsafe construct")
)

// deniedTags are YAML constructs that must never appear in generated
// output. Each either pulls in external files or instantiates arbitrary
// objects when the platform loads the file.
var deniedTags = []string{
	"!include",
	"!include_dir_list",
	"!include_dir_named",
	"!include_dir_merge_list",
	"!include_dir_merge_named",
	"!env_var",
	"!secret",
	"!!python/",
}

// ValidatePath confirms that path resolves to a location inside root.
// Relative segments are cleaned first and symlinks in existing ancestors
// are followed, so neither "../" hops nor a symlinked parent can place a
// write outside root.
func ValidatePath(root, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty root", ErrPathTraversal)
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathTraversal)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	// The target file usually does not exist yet; resolve symlinks on the
	// nearest existing ancestor instead.
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return candidate, nil
}

// resolveExisting resolves symlinks on the deepest existing ancestor of
// path and rejoins the missing tail.
func resolveExisting(path string) (string, error) {
	dir := path
	var tail []string
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = dir
		} else {
			return "", err
		}
	}
	return filepath.Join(append([]string{resolved}, tail...)...), nil
}

// ValidateContent scans generated file content for denied YAML constructs.
// The scan is a plain substring check over every line: the artifacts are
// produced by this service and never legitimately carry these tags, so a
// false positive on a quoted alias is preferable to a miss.
func ValidateContent(content []byte) error {
	text := string(content)
	for _, tag := range deniedTags {
		if idx := strings.Index(text, tag); idx >= 0 {
			line := 1 + strings.Count(text[:idx], "\n")
			return fmt.Errorf("%w: %s at line %d", ErrUnsafeContent, tag, line)
		}
	}
	return nil
}
