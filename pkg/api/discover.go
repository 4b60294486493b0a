package api

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ConfigFilename is the pipeline definition file Discover looks for.
const ConfigFilename = "matrixci.yaml"

// Discover finds and loads every matrixci.yaml under root, up to
// maxDepth directory levels (-1 = unlimited, 0 = root only). Results
// come back parents-first, lexically ordered within one depth.
func Discover(root string, maxDepth int) ([]*Pipeline, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/"+ConfigFilename)
	if err != nil {
		return nil, fmt.Errorf("searching for %s under %s: %w", ConfigFilename, root, err)
	}

	var paths []string
	for _, rel := range matches {
		if maxDepth >= 0 && strings.Count(rel, "/") > maxDepth {
			continue
		}
		paths = append(paths, rel)
	}

	slices.SortFunc(paths, func(a, b string) int {
		if d := strings.Count(a, "/") - strings.Count(b, "/"); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	pipelines := make([]*Pipeline, 0, len(paths))
	for _, rel := range paths {
		pipeline, err := Load(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", rel, err)
		}
		pipelines = append(pipelines, pipeline)
	}
	return pipelines, nil
}
