package mcp

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResources(t *testing.T) *ResourceRegistry {
	t.Helper()
	r, err := NewResourceRegistry(
		TextResource(Resource{URI: "mem:///b", MimeType: "text/plain"}, "bee"),
		TextResource(Resource{URI: "mem:///a", MimeType: "text/markdown"}, "# a"),
		StaticResource{
			Resource: Resource{URI: "mem:///broken", MimeType: "text/plain"},
			Read: func(context.Context) ([]Content, error) {
				return nil, errors.New("disk on fire")
			},
		},
	)
	require.NoError(t, err)
	return r
}

func TestResourceRegistry(t *testing.T) {
	r := testResources(t)

	assert.Equal(t, 3, r.Len())
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "mem:///b", list[0].URI)
	assert.Equal(t, "mem:///a", list[1].URI)

	res, ok := r.Get("mem:///a")
	require.True(t, ok)
	assert.Equal(t, "text/markdown", res.MimeType)

	_, ok = r.Get("mem:///zzz")
	assert.False(t, ok)
}

func TestResourceRegistryRead(t *testing.T) {
	r := testResources(t)

	contents, err := r.Read(context.Background(), "mem:///b")
	require.NoError(t, err)
	assert.Equal(t, []Content{TextContent("bee")}, contents)

	contents, err = r.Read(context.Background(), "mem:///nope")
	assert.ErrorIs(t, err, ErrResourceNotFound)
	assert.Nil(t, contents)

	_, err = r.Read(context.Background(), "mem:///broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResourceNotFound)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestResourceRegistryRejects(t *testing.T) {
	_, err := NewResourceRegistry(
		TextResource(Resource{URI: "mem:///a"}, "1"),
		TextResource(Resource{URI: "mem:///a"}, "2"),
	)
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewResourceRegistry(StaticResource{Resource: Resource{URI: "mem:///a"}})
	assert.ErrorContains(t, err, "no reader")

	_, err = NewResourceRegistry(TextResource(Resource{}, ""))
	assert.ErrorContains(t, err, "empty uri")
}
