package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	r := NewRecord("HOST", "host1.example.env.prod")
	r.ListVersion = 3
	r.Tags["owner"] = &Tag{
		Versions: []uint64{2},
		Values: []TaggedValue{
			{Value: "sre-team", Versions: []uint64{1}},
			{Value: "sre-team-2", Versions: []uint64{2}},
		},
	}
	r.Forward = []EdgeGroup{
		{Label: "cluster", Edges: []EdgeRef{{Name: "cluster1", Versions: []uint64{1}}}},
	}
	r.Reverse = []EdgeGroup{
		{Label: "environment", Edges: []EdgeRef{{Name: "prod", Versions: []uint64{1, 3}}}},
	}
	r.MutationVersions = []uint64{1, 2, 3}
	r.GraphVersions = []uint64{1, 2, 3}

	data, err := r.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, r.NodeType, got.NodeType)
	assert.Equal(t, r.Name, got.Name)
	assert.Equal(t, r.ListVersion, got.ListVersion)
	assert.Equal(t, r.Tags, got.Tags)
	assert.Equal(t, r.Forward, got.Forward)
	assert.Equal(t, r.Reverse, got.Reverse)
	assert.Equal(t, r.MutationVersions, got.MutationVersions)
	assert.Equal(t, r.GraphVersions, got.GraphVersions)
	assert.Nil(t, got.RemovedAtVersion)
}

func TestRecordRoundTrip_RemovedAtVersion(t *testing.T) {
	r := NewRecord("HOST", "host1")
	r.ListVersion = 4
	r.MutationVersions = []uint64{1, 4}
	removedAt := uint64(4)
	r.RemovedAtVersion = &removedAt

	data, err := r.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, got.RemovedAtVersion)
	assert.Equal(t, removedAt, *got.RemovedAtVersion)
}

func TestRecordRoundTrip_EmptyRecord(t *testing.T) {
	r := NewRecord("ENVIRONMENT", "prod")
	data, err := r.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, r.NodeType, got.NodeType)
	assert.Empty(t, got.Tags)
	assert.Empty(t, got.Forward)
	assert.Empty(t, got.GraphVersions)
}

func TestDecode_RejectsCorruptChecksum(t *testing.T) {
	r := NewRecord("HOST", "host1")
	data, err := r.Encode()
	require.NoError(t, err)

	data[0] ^= 0xFF

	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecode_RejectsTooShort(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}
