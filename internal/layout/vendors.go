package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrVendorNotFound is returned when no layout matches a document name.
var ErrVendorNotFound = errors.New("no vendor layout matches document")

// reservedConfig is an engine configuration file kept beside vendor layouts.
const reservedConfig = "ocr_config.yaml"

// ListVendors returns the sorted vendor names for every layout in dir.
func ListVendors(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list layouts in %s: %w", dir, err)
	}

	var vendors []string
	for _, e := range entries {
		if e.IsDir() || strings.EqualFold(e.Name(), reservedConfig) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		vendors = append(vendors, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(vendors)
	return vendors, nil
}

// MatchVendor picks the vendor whose name appears, case-insensitively, in the
// document stem. The longest matching name wins.
func MatchVendor(vendors []string, documentStem string) (string, error) {
	stem := strings.ToLower(documentStem)
	best := ""
	for _, v := range vendors {
		if v == "" || !strings.Contains(stem, strings.ToLower(v)) {
			continue
		}
		if len(v) > len(best) {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: %s (available: %s)", ErrVendorNotFound, documentStem, strings.Join(vendors, ", "))
	}
	return best, nil
}

// FindFileCaseInsensitive walks dir and returns the first file whose name
// equals target ignoring case, or "" when there is none.
func FindFileCaseInsensitive(target, dir string) string {
	var found string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), target) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// VendorPath locates the layout file for vendor in dir.
func VendorPath(vendor, dir string) string {
	if p := FindFileCaseInsensitive(vendor+".yaml", dir); p != "" {
		return p
	}
	return FindFileCaseInsensitive(vendor+".yml", dir)
}

// ValidateRequiredFiles reports every file a run for vendor needs but cannot find.
func ValidateRequiredFiles(vendor, configsDir string, templates []string, templatesDir string) []string {
	var missing []string
	if VendorPath(vendor, configsDir) == "" {
		missing = append(missing, fmt.Sprintf("Vendor config: %s.yaml/yml", vendor))
	}
	for _, name := range templates {
		if FindFileCaseInsensitive(name, templatesDir) == "" {
			missing = append(missing, "Template: "+name)
		}
	}
	return missing
}

// IsDirWritable reports whether a file can be created in dir.
func IsDirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".fieldscan-write-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
