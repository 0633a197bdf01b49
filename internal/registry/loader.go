package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"simplegen/internal/common/fsutil"
	"simplegen/pkg/types"
)

var quantRe = regexp.MustCompile(`(?i)(q[0-9]+(_[a-z0-9]+)*|f16|f32)`)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. The quant string is derived from the filename when
// recognizable.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:    name,
			Name:  name,
			Path:  filepath.Join(abs, name),
			Quant: quantFromName(name),
		})
	}
	return models, nil
}

// quantFromName pulls a quantization tag like Q4_K_M out of a model
// filename. Returns "" when no tag is recognizable.
func quantFromName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.FieldsFunc(base, func(r rune) bool { return r == '.' || r == '-' })
	for i := len(parts) - 1; i >= 0; i-- {
		if quantRe.MatchString(parts[i]) && strings.ContainsAny(parts[i], "qQfF") {
			m := quantRe.FindString(parts[i])
			if strings.EqualFold(m, parts[i]) {
				return strings.ToUpper(parts[i])
			}
		}
	}
	return ""
}
