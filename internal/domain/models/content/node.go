package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known node ids. The root anchors every path; the recycle bin holds trashed subtrees.
const (
	RootID       int64 = -1
	RecycleBinID int64 = -20
)

// Kind tags which extensions a Record carries.
type Kind string

const (
	KindDocument Kind = "document"
	KindMedia    Kind = "media"
	KindMember   Kind = "member"
	KindSystem   Kind = "system" // root and recycle bin
)

// IsContent reports whether nodes of this kind carry a ContentInfo extension.
func (k Kind) IsContent() bool {
	switch k {
	case KindDocument, KindMedia, KindMember:
		return true
	}
	return false
}

// NodePath is the materialized ancestor chain of a node, root first, self last.
type NodePath []int64

// RootPath is the path of the hierarchy root.
var RootPath = NodePath{RootID}

// RecycleBinPath is the path of the recycle bin container.
var RecycleBinPath = NodePath{RootID, RecycleBinID}

// ParsePath parses the persisted comma separated form ("-1,1051,1063").
func ParsePath(s string) (NodePath, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(s, ",")
	path := make(NodePath, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", s, err)
		}
		path = append(path, id)
	}
	return path, nil
}

// String renders the persisted form.
func (p NodePath) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Child returns the path of a child with the given id.
func (p NodePath) Child(id int64) NodePath {
	child := make(NodePath, len(p), len(p)+1)
	copy(child, p)
	return append(child, id)
}

// Self returns the last id of the path.
func (p NodePath) Self() int64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Ancestors returns the ids above self, root first.
func (p NodePath) Ancestors() []int64 {
	if len(p) < 2 {
		return nil
	}
	out := make([]int64, len(p)-1)
	copy(out, p[:len(p)-1])
	return out
}

// Contains reports whether id appears anywhere in the path.
func (p NodePath) Contains(id int64) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

// HasPrefix reports whether prefix is a (non-strict) ancestor chain of p.
func (p NodePath) HasPrefix(prefix NodePath) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Rebase replaces oldPrefix with newPrefix. p must start with oldPrefix.
func (p NodePath) Rebase(oldPrefix, newPrefix NodePath) NodePath {
	out := make(NodePath, 0, len(newPrefix)+len(p)-len(oldPrefix))
	out = append(out, newPrefix...)
	return append(out, p[len(oldPrefix):]...)
}

// Node is the minimal hierarchical identity shared by every kind.
type Node struct {
	ID        int64     `json:"id" db:"id"`
	UniqueID  uuid.UUID `json:"unique_id" db:"unique_id"`
	ParentID  int64     `json:"parent_id" db:"parent_id"`
	Path      NodePath  `json:"path" db:"path"`
	Level     int       `json:"level" db:"level"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	Trashed   bool      `json:"trashed" db:"trashed"`
	Kind      Kind      `json:"kind" db:"kind"`
	Text      string    `json:"text" db:"text"`
	CreatorID string    `json:"creator_id" db:"creator_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsRoot reports whether the node is the hierarchy root.
func (n *Node) IsRoot() bool { return n.ID == RootID }

// IsRecycleBin reports whether the node is the recycle bin container.
func (n *Node) IsRecycleBin() bool { return n.ID == RecycleBinID }

// InRecycleBin reports whether the node sits somewhere below the recycle bin.
func (n *Node) InRecycleBin() bool {
	return n.Path.HasPrefix(RecycleBinPath) && n.ID != RecycleBinID
}

// ContentInfo is present on every content kind.
type ContentInfo struct {
	ContentType string `json:"content_type"`
}

// DocumentInfo is present on KindDocument records.
type DocumentInfo struct {
	Current             *Version `json:"current"`
	HasPublishedVersion bool     `json:"has_published_version"`
}

// Record composes a node with the optional extensions selected by its kind.
type Record struct {
	Node     Node          `json:"node"`
	Content  *ContentInfo  `json:"content,omitempty"`
	Document *DocumentInfo `json:"document,omitempty"`
}

// IsDocument reports whether the record carries a document extension.
func (r *Record) IsDocument() bool {
	return r.Document != nil
}
