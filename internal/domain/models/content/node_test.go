package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("-1,1051,1063")
	require.NoError(t, err)
	assert.Equal(t, NodePath{-1, 1051, 1063}, p)
	assert.Equal(t, "-1,1051,1063", p.String())
	assert.Equal(t, int64(1063), p.Self())
	assert.Equal(t, []int64{-1, 1051}, p.Ancestors())

	_, err = ParsePath("")
	assert.Error(t, err)
	_, err = ParsePath("-1,abc")
	assert.Error(t, err)
}

func TestNodePath_Relations(t *testing.T) {
	p := NodePath{-1, 10, 11}

	assert.True(t, p.HasPrefix(NodePath{-1, 10}))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(NodePath{-1, 1}))
	assert.False(t, NodePath{-1}.HasPrefix(p))

	child := p.Child(12)
	assert.Equal(t, NodePath{-1, 10, 11, 12}, child)
	assert.Equal(t, NodePath{-1, 10, 11}, p, "Child must not alias the parent")

	assert.Equal(t, NodePath{-1, -20, 10, 11}, p.Rebase(NodePath{-1, 10}, NodePath{-1, -20, 10}))
	assert.Nil(t, RootPath.Ancestors())
}

func TestNode_RecycleBin(t *testing.T) {
	bin := Node{ID: RecycleBinID, Path: RecycleBinPath}
	assert.True(t, bin.IsRecycleBin())
	assert.False(t, bin.InRecycleBin())

	trashed := Node{ID: 1050, Path: RecycleBinPath.Child(1050)}
	assert.True(t, trashed.InRecycleBin())

	live := Node{ID: 1051, Path: RootPath.Child(1051)}
	assert.False(t, live.InRecycleBin())
}

func TestHasPendingChanges(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		newest    *Version
		published *Version
		want      bool
	}{
		{"no version", nil, nil, false},
		{"untouched draft", &Version{CreatedAt: base, UpdatedAt: base}, nil, false},
		{"exactly at tolerance", &Version{CreatedAt: base, UpdatedAt: base.Add(PendingChangesTolerance)}, nil, false},
		{"past tolerance", &Version{CreatedAt: base, UpdatedAt: base.Add(PendingChangesTolerance + time.Millisecond)}, nil, true},
		{
			"edited after publish",
			&Version{CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(5 * time.Second)},
			&Version{CreatedAt: base},
			true,
		},
		{
			"published is newest",
			&Version{CreatedAt: base, UpdatedAt: base.Add(time.Second)},
			&Version{CreatedAt: base},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPendingChanges(tt.newest, tt.published))
		})
	}
}

func TestVersion_SetProperty(t *testing.T) {
	v := &Version{}
	v.SetProperty(Property{Alias: "body", Kind: PropertyText, Value: "a"})
	v.SetProperty(Property{Alias: "body", Kind: PropertyText, Value: "b"})
	v.SetProperty(Property{Alias: "file", Kind: PropertyUpload, Value: "/media/1/a.png"})

	require.Len(t, v.Properties, 2)
	p, ok := v.Property("body")
	require.True(t, ok)
	assert.Equal(t, "b", p.Value)
	assert.True(t, v.Properties[1].IsAsset())

	copied := CopyProperties(v.Properties)
	copied[0].Value = "changed"
	assert.Equal(t, "b", v.Properties[0].Value)
	assert.Equal(t, []Property{}, CopyProperties(nil))
}
