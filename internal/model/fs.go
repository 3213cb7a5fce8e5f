package model

import (
	"os"
	"path/filepath"
	"strings"
)

// ReadTree builds a file tree from a directory on disk. Hidden entries
// (dot-prefixed, including .git) are skipped. Entries come back in the
// lexical order os.ReadDir guarantees.
func ReadTree(dir string) ([]FileNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var nodes []FileNode
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			children, err := ReadTree(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, FileNode{Name: name, Type: NodeFolder, Children: children})
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, FileNode{Name: name, Type: NodeFile, Content: string(data)})
	}
	return nodes, nil
}
