// Package model holds entities shared across the collaboration services.
package model

import "sort"

// User identifies a collaborator in a session. Color is the cursor/label
// color assigned by the UI layer; the services carry it through unchanged.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// NodeType distinguishes files from folders in a project tree.
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// FileNode is one node of the recursive project file tree supplied by the
// file-system provider. Services only ever read trees; Clone is used where a
// full independent copy is required (snapshots, restores).
type FileNode struct {
	Name     string     `json:"name"`
	Type     NodeType   `json:"type"`
	Content  string     `json:"content,omitempty"`
	Children []FileNode `json:"children,omitempty"`
}

// Clone returns a deep copy of the node and all descendants.
func (n FileNode) Clone() FileNode {
	out := FileNode{Name: n.Name, Type: n.Type, Content: n.Content}
	if n.Children != nil {
		out.Children = CloneTree(n.Children)
	}
	return out
}

// CloneTree deep-copies a slice of file nodes.
func CloneTree(nodes []FileNode) []FileNode {
	if nodes == nil {
		return nil
	}
	out := make([]FileNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// FlattenTree returns a map of slash-joined path -> file content for every
// file node in the tree. Folders contribute only their path segment.
func FlattenTree(nodes []FileNode) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", nodes)
	return out
}

func flattenInto(out map[string]string, prefix string, nodes []FileNode) {
	for _, n := range nodes {
		path := n.Name
		if prefix != "" {
			path = prefix + "/" + n.Name
		}
		switch n.Type {
		case NodeFile:
			out[path] = n.Content
		case NodeFolder:
			flattenInto(out, path, n.Children)
		}
	}
}

// CountFiles returns the number of file (not folder) nodes in the tree.
func CountFiles(nodes []FileNode) int {
	count := 0
	for _, n := range nodes {
		switch n.Type {
		case NodeFile:
			count++
		case NodeFolder:
			count += CountFiles(n.Children)
		}
	}
	return count
}

// TreeSize returns the total content bytes across all file nodes.
func TreeSize(nodes []FileNode) int {
	size := 0
	for _, n := range nodes {
		switch n.Type {
		case NodeFile:
			size += len(n.Content)
		case NodeFolder:
			size += TreeSize(n.Children)
		}
	}
	return size
}

// SortedPaths returns the keys of a flattened tree in lexical order.
func SortedPaths(flat map[string]string) []string {
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
