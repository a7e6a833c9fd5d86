// Package output writes recognized documents to per-run session folders.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"
)

// Output formats
const (
	FormatText = "txt"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
	FormatHOCR = "hocr"
)

// TimestampLayout is appended to the input name to form a session folder.
const TimestampLayout = "20060102_150405"

// DefaultFormats are written when none are configured.
var DefaultFormats = []string{FormatText, FormatJSON}

var allFormats = []string{FormatText, FormatJSON, FormatCSV, FormatHTML, FormatHOCR}

var sessionPattern = regexp.MustCompile(`_\d{8}_\d{6}(_\d+)?$`)

// RunConfig controls where and how one run writes its results.
type RunConfig struct {
	Root      string
	Timestamp time.Time
	Formats   []string
	// KeepRuns prunes existing session folders down to this many before the
	// run starts when > 0.
	KeepRuns int
}

// ValidateFormats rejects unknown format names.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if !slices.Contains(allFormats, strings.ToLower(f)) {
			return fmt.Errorf("unknown output format %q (available: %s)", f, strings.Join(allFormats, ", "))
		}
	}
	return nil
}

// BaseName is the input file name without directory or extension.
func BaseName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SessionDir returns <root>/<input base>_<timestamp> for source.
func (c RunConfig) SessionDir(source string) string {
	return filepath.Join(c.Root, BaseName(source)+"_"+c.Timestamp.Format(TimestampLayout))
}

// NewSession creates a new session folder for source. When SessionDir is
// already taken, as with two inputs of the same name in one run, a _2, _3, ...
// suffix is added.
func (c RunConfig) NewSession(source string) (string, error) {
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}

	base := c.SessionDir(source)
	dir := base
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create session folder: %w", err)
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
}

func (c RunConfig) formats() []string {
	if len(c.Formats) == 0 {
		return DefaultFormats
	}
	out := make([]string, 0, len(c.Formats))
	for _, f := range c.Formats {
		f = strings.ToLower(f)
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Prune deletes all but the keep most recently modified session folders
// under root and returns the removed paths. Folders not named like a
// session are left alone.
func Prune(root string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type session struct {
		path    string
		modTime time.Time
	}
	var sessions []session
	for _, e := range entries {
		if !e.IsDir() || !sessionPattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session{filepath.Join(root, e.Name()), info.ModTime()})
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].modTime.Equal(sessions[j].modTime) {
			return sessions[i].modTime.After(sessions[j].modTime)
		}
		return sessions[i].path > sessions[j].path
	})

	if len(sessions) <= keep {
		return nil, nil
	}

	var removed []string
	for _, s := range sessions[keep:] {
		if err := os.RemoveAll(s.path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", s.path, err)
		}
		removed = append(removed, s.path)
	}
	return removed, nil
}
