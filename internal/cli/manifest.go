package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a multi-feed ingestion: one entry per feed file, in
// processing order.
type Manifest struct {
	Feeds []ManifestFeed `yaml:"feeds"`
}

// ManifestFeed is one feed file plus the source tag recorded on every
// version it produces.
type ManifestFeed struct {
	Path   string `yaml:"path"`
	Source string `yaml:"source"`
}

// readManifest parses and validates a YAML feed manifest.
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Feeds) == 0 {
		return nil, fmt.Errorf("manifest %s: no feeds listed", path)
	}
	for i, feed := range m.Feeds {
		if feed.Path == "" {
			return nil, fmt.Errorf("manifest %s: feed %d: missing path", path, i)
		}
		if feed.Source == "" {
			return nil, fmt.Errorf("manifest %s: feed %d: missing source tag", path, i)
		}
	}
	return &m, nil
}
