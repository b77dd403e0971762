// Package link checks the reference tree between dataset folders. A folder
// may declare the folders it links to in a links.yml document; the resulting
// folder-to-folder graph must be acyclic, with the same cycle reporting
// contract as the pipeline dependency graph.
package link

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/graph"
)

// LinksFilename is the document a folder uses to declare its links.
const LinksFilename = "links.yml"

type linksDocument struct {
	Links []string `yaml:"links"`
}

// BuildGraph scans the tree rooted at rootDir for folders carrying a
// links.yml document and assembles the folder-to-folder reference graph.
// Link targets are resolved relative to the declaring folder.
func BuildGraph(rootDir string) (*graph.Digraph, error) {
	g := graph.New()

	err := filepath.WalkDir(rootDir, func(entryPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || entry.Name() != LinksFilename {
			return nil
		}

		folder := filepath.Dir(entryPath)
		targets, err := readLinks(entryPath)
		if err != nil {
			return err
		}

		g.AddNode(dag.NormalizePath(folder))
		for _, target := range targets {
			if !filepath.IsAbs(target) {
				target = filepath.Join(folder, target)
			}
			g.AddEdge(dag.NormalizePath(folder), dag.NormalizePath(target))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder links under %s: %w", rootDir, err)
	}

	return g, nil
}

// Check refuses any cycle in the folder reference tree, naming every folder
// on the discovered cycle.
func Check(rootDir string) error {
	g, err := BuildGraph(rootDir)
	if err != nil {
		return err
	}

	if cycle := g.FindCycle(); cycle != nil {
		return graph.CycleError{Cycle: cycle}
	}

	return nil
}

func readLinks(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read links file %s: %w", filename, err)
	}

	document := linksDocument{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to decode links file %s: %w", filename, err)
	}

	return document.Links, nil
}
