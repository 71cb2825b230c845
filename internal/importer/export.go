package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/utils"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or yaml)", s)
}

// FileName returns the export file name for a roadmap, such as
// "q3_launch-data.json".
func FileName(roadmapName string, f Format) string {
	ext := "json"
	if f == FormatYAML {
		ext = "yaml"
	}
	return utils.Slugify(roadmapName, "roadmap") + "-data." + ext
}

// Export writes r to w in format f.
func Export(w io.Writer, r *roadmap.Roadmap, f Format) error {
	if r.Tasks == nil {
		cp := *r
		cp.Tasks = []roadmap.Task{}
		r = &cp
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode roadmap: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode roadmap: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q", f)
}
