package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePathValidator checks local file paths taken from configuration and
// flags: the stats override, the log file and generated config files.
type FilePathValidator struct {
	// AllowedBaseDirs restricts paths to these directories. Empty allows any.
	AllowedBaseDirs []string
	// AllowHomeExpansion determines if a leading ~/ is expanded
	AllowHomeExpansion bool
	// MaxPathLength is the maximum allowed path length
	MaxPathLength int
}

func NewFilePathValidator(baseDirs ...string) *FilePathValidator {
	return &FilePathValidator{
		AllowedBaseDirs:    baseDirs,
		AllowHomeExpansion: true,
		MaxPathLength:      4096,
	}
}

// ValidateAndSanitize returns the cleaned absolute form of path.
func (v *FilePathValidator) ValidateAndSanitize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if len(path) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	if err := validateCharacters(path); err != nil {
		return "", err
	}

	normalized, err := v.normalizePath(path)
	if err != nil {
		return "", fmt.Errorf("path normalization failed: %w", err)
	}
	if err := v.validateBaseDirs(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateFile is ValidateAndSanitize plus a check that an existing path is
// not a directory.
func (v *FilePathValidator) ValidateFile(path string) (string, error) {
	validated, err := v.ValidateAndSanitize(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(validated); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", validated)
	}
	return validated, nil
}

func validateCharacters(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes")
	}
	for _, char := range path {
		if char < 32 && char != '\t' {
			return fmt.Errorf("path contains control characters")
		}
	}
	return nil
}

func (v *FilePathValidator) normalizePath(path string) (string, error) {
	if v.AllowHomeExpansion && strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	} else if strings.HasPrefix(path, "~") {
		return "", fmt.Errorf("tilde expansion not allowed or invalid tilde usage")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	return abs, nil
}

func (v *FilePathValidator) validateBaseDirs(path string) error {
	if len(v.AllowedBaseDirs) == 0 {
		return nil
	}
	for _, baseDir := range v.AllowedBaseDirs {
		absBase, err := filepath.Abs(baseDir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("path not within allowed directories: %v", v.AllowedBaseDirs)
}
