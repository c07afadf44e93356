package share

import (
	"encoding/json"
	"sort"
	"strings"
)

// FolderMIMEType marks a FileInfo as a directory.
const FolderMIMEType = "folder"

// FileInfo is one node of a share's file tree.
//
// Files carry Size. Folders carry Children: nil means the folder was never
// expanded, an empty non-nil slice means it was expanded and found empty.
type FileInfo struct {
	Children []FileInfo `json:"children"`
	MIMEType string     `json:"mimeType"`
	Name     string     `json:"name"`
	Size     *int64     `json:"size"`
}

// IsFolder reports whether the node is a directory.
func (f FileInfo) IsFolder() bool {
	return f.MIMEType == FolderMIMEType
}

// MarshalJSON omits size for folders and children for leaves or unexpanded
// folders, keeping an empty children array when a folder was expanded.
func (f FileInfo) MarshalJSON() ([]byte, error) {
	type wire struct {
		Children *[]FileInfo `json:"children,omitempty"`
		MIMEType string      `json:"mimeType"`
		Name     string      `json:"name"`
		Size     *int64      `json:"size,omitempty"`
	}
	w := wire{MIMEType: f.MIMEType, Name: f.Name, Size: f.Size}
	if f.Children != nil {
		children := f.Children
		w.Children = &children
	}
	return json.Marshal(w)
}

// NewFile builds a leaf node.
func NewFile(name, mimeType string, size int64) FileInfo {
	return FileInfo{Name: name, MIMEType: mimeType, Size: &size}
}

// NewFolder builds a folder node. Pass a nil slice for an unexpanded folder.
func NewFolder(name string, children []FileInfo) FileInfo {
	return FileInfo{Name: name, MIMEType: FolderMIMEType, Children: children}
}

// Entry is a leaf of a flattened tree with its slash-joined path.
type Entry struct {
	Path string `json:"path"`
	FileInfo
}

// Flatten returns every non-folder node below root. When root is a folder its
// own name is not part of the paths. Entries are ordered by depth, then
// lexicographically by path.
func Flatten(root FileInfo) []Entry {
	var out []Entry
	var walk func(f FileInfo, prefix string)
	walk = func(f FileInfo, prefix string) {
		p := f.Name
		if prefix != "" {
			p = prefix + "/" + f.Name
		}
		if !f.IsFolder() {
			out = append(out, Entry{Path: p, FileInfo: f})
		}
		for _, c := range f.Children {
			walk(c, p)
		}
	}
	if root.IsFolder() {
		for _, c := range root.Children {
			walk(c, "")
		}
	} else {
		walk(root, "")
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := strings.Count(out[i].Path, "/"), strings.Count(out[j].Path, "/")
		if di != dj {
			return di < dj
		}
		return out[i].Path < out[j].Path
	})
	return out
}
