package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
)

// FileCuratorResolver reads the curator profile from a YAML file:
//
//	name: editorial
//	instructions: |
//	  Prefer concise runbooks. Flag anything that looks like credentials.
//
// The store caches the result, so the file is read at most once per cache TTL.
type FileCuratorResolver struct {
	Path string
}

// ResolveCurator implements curation.CuratorResolver.
func (r *FileCuratorResolver) ResolveCurator(ctx context.Context) (curation.CuratorProfile, error) {
	if err := ctx.Err(); err != nil {
		return curation.CuratorProfile{}, err
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return curation.CuratorProfile{}, fmt.Errorf("failed to read curator profile: %w", err)
	}

	var raw struct {
		Name         string `yaml:"name"`
		Instructions string `yaml:"instructions"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return curation.CuratorProfile{}, fmt.Errorf("failed to parse curator profile: %w", err)
	}
	return curation.CuratorProfile{
		Name:         strings.TrimSpace(raw.Name),
		Instructions: strings.TrimSpace(raw.Instructions),
	}, nil
}
