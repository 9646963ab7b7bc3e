package content

import (
	"time"

	"github.com/google/uuid"
)

// PendingChangesTolerance absorbs clock and storage rounding between a version's creation and its
// last edit.
const PendingChangesTolerance = 2000 * time.Millisecond

// PropertyKind tells how a property value must be treated when copying or deleting.
type PropertyKind string

const (
	PropertyText   PropertyKind = "text"
	PropertyUpload PropertyKind = "upload" // value is an asset path
	PropertyTags   PropertyKind = "tags"   // comma separated tag list
)

// Property is one typed value attached to a version.
type Property struct {
	Alias string       `json:"alias"`
	Kind  PropertyKind `json:"kind"`
	Value string       `json:"value"`
}

// IsAsset reports whether the value refers to a file in the asset store.
func (p Property) IsAsset() bool {
	return p.Kind == PropertyUpload && p.Value != ""
}

// Version is a point-in-time snapshot of a document's editable content.
type Version struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	NodeID      int64      `json:"node_id" db:"node_id"`
	Text        string     `json:"text" db:"text"`
	TemplateID  *int64     `json:"template_id,omitempty" db:"template_id"`
	Properties  []Property `json:"properties" db:"properties"`
	WriterID    string     `json:"writer_id" db:"writer_id"`
	Newest      bool       `json:"newest" db:"newest"`
	Published   bool       `json:"published" db:"published"`
	ReleaseDate time.Time  `json:"release_date,omitzero" db:"release_date"`
	ExpireDate  time.Time  `json:"expire_date,omitzero" db:"expire_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// HasPendingChanges reports whether newest was edited after the last publish. The publish
// timestamp is the creation time of the published version; without one, the newest version's own
// creation time is used. Gaps up to PendingChangesTolerance do not count.
func HasPendingChanges(newest, published *Version) bool {
	if newest == nil {
		return false
	}
	since := newest.CreatedAt
	if published != nil {
		since = published.CreatedAt
	}
	return newest.UpdatedAt.Sub(since) > PendingChangesTolerance
}

// Property returns the property with the given alias.
func (v *Version) Property(alias string) (Property, bool) {
	for _, p := range v.Properties {
		if p.Alias == alias {
			return p, true
		}
	}
	return Property{}, false
}

// SetProperty replaces or appends a property by alias.
func (v *Version) SetProperty(p Property) {
	for i := range v.Properties {
		if v.Properties[i].Alias == p.Alias {
			v.Properties[i] = p
			return
		}
	}
	v.Properties = append(v.Properties, p)
}

// CopyProperties returns a deep copy of the property list.
func CopyProperties(props []Property) []Property {
	if props == nil {
		return []Property{}
	}
	out := make([]Property, len(props))
	copy(out, props)
	return out
}

// NullableTime maps the unset sentinel (zero time) to nil for storage.
func NullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FromNullableTime maps a stored nullable timestamp back to the sentinel form.
func FromNullableTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
