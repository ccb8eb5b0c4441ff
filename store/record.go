package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

const recordMagic uint32 = 0x5241_4e47 // "RANG"
const recordVersion uint8 = 2

// TaggedValue is one value in a tag's value list, with the full history of
// list_versions at which it was added or reconfirmed. Its last entry is the
// list_version at which it was most recently touched; if that entry is not
// the node's own most recent mutation, the value is no longer live.
type TaggedValue struct {
	Value    string
	Versions []uint64
}

// Tag is a single key's touch history and ordered value list. Versions
// works the same way as TaggedValue.Versions: the key is live only while
// its last entry matches the node's own last mutation point.
type Tag struct {
	Versions []uint64
	Values   []TaggedValue
}

// EdgeRef names a single edge within a named edge group (e.g. the "cluster"
// forward-edge group of an environment node), with the list_version history
// at which the edge was added or confirmed present.
type EdgeRef struct {
	Name     string
	Versions []uint64
}

// EdgeGroup is a named collection of edges, e.g. forward edges labelled
// "cluster" on an environment node, or reverse edges labelled "environment"
// on a cluster node.
type EdgeGroup struct {
	Label string
	Edges []EdgeRef
}

// Record is the serialized, extensible tagged form of a graph node: its
// type, monotonic list_version, tag annotations, forward/reverse edge
// groups, mutation history, and the range-version snapshots it belongs to.
//
// Every edge, tag and tagged value carries its own version list rather than
// a single current value. A mutation extends the version list of every
// field that is still live with the new list_version; removing a field is
// modeled by simply not extending its list, so its last entry freezes at
// the version it was last live. MutationVersions is the node's own ordered
// record of every list_version it was touched at (see liveAt), which is
// what "still live" is measured against: a field is live at a version v
// exactly when its own last touch at-or-before v is also the node's own
// last touch at-or-before v. This is what lets any prior version of a node
// remain queryable instead of being overwritten in place.
type Record struct {
	NodeType         string
	Name             string
	ListVersion      uint64
	Tags             map[string]*Tag
	Forward          []EdgeGroup
	Reverse          []EdgeGroup
	MutationVersions []uint64
	GraphVersions    []uint64
	RemovedAtVersion *uint64
}

// NewRecord returns an empty record of the given node type and name at
// list_version 0.
func NewRecord(nodeType, name string) *Record {
	return &Record{
		NodeType: nodeType,
		Name:     name,
		Tags:     make(map[string]*Tag),
	}
}

// Encode serializes r into rangedb's tagged binary wire format: a small
// fixed header, the record body, and a trailing crc32 checksum over
// everything preceding it. The format is internal to this module but
// stable across versions of this package for round-trip purposes.
func (r *Record) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, recordMagic); err != nil {
		return nil, err
	}
	if err := buf.WriteByte(recordVersion); err != nil {
		return nil, err
	}
	writeString(&buf, r.NodeType)
	writeString(&buf, r.Name)
	writeUint64(&buf, r.ListVersion)

	writeUint32(&buf, uint32(len(r.Tags)))
	for key, tag := range r.Tags {
		writeString(&buf, key)
		writeVersions(&buf, tag.Versions)
		writeUint32(&buf, uint32(len(tag.Values)))
		for _, v := range tag.Values {
			writeString(&buf, v.Value)
			writeVersions(&buf, v.Versions)
		}
	}

	writeEdgeGroups(&buf, r.Forward)
	writeEdgeGroups(&buf, r.Reverse)

	writeVersions(&buf, r.MutationVersions)
	writeVersions(&buf, r.GraphVersions)

	if r.RemovedAtVersion != nil {
		buf.WriteByte(1)
		writeUint64(&buf, *r.RemovedAtVersion)
	} else {
		buf.WriteByte(0)
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(&buf, binary.BigEndian, sum); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a Record previously produced by Encode, verifying its
// trailing crc32.
func Decode(data []byte) (*Record, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("store: record too short")
	}
	body, sumBytes := data[:len(data)-4], data[len(data)-4:]
	want := binary.BigEndian.Uint32(sumBytes)
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("store: record checksum mismatch (corrupt record)")
	}

	r := bytes.NewReader(body)

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != recordMagic {
		return nil, fmt.Errorf("store: unrecognized record magic %x", magic)
	}
	ver, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if ver != recordVersion {
		return nil, fmt.Errorf("store: unsupported record version %d", ver)
	}

	rec := &Record{Tags: make(map[string]*Tag)}
	if rec.NodeType, err = readString(r); err != nil {
		return nil, err
	}
	if rec.Name, err = readString(r); err != nil {
		return nil, err
	}
	if rec.ListVersion, err = readUint64(r); err != nil {
		return nil, err
	}

	tagCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < tagCount; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		keyVersions, err := readVersions(r)
		if err != nil {
			return nil, err
		}
		valCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		tag := &Tag{Versions: keyVersions, Values: make([]TaggedValue, 0, valCount)}
		for j := uint32(0); j < valCount; j++ {
			val, err := readString(r)
			if err != nil {
				return nil, err
			}
			valVersions, err := readVersions(r)
			if err != nil {
				return nil, err
			}
			tag.Values = append(tag.Values, TaggedValue{Value: val, Versions: valVersions})
		}
		rec.Tags[key] = tag
	}

	if rec.Forward, err = readEdgeGroups(r); err != nil {
		return nil, err
	}
	if rec.Reverse, err = readEdgeGroups(r); err != nil {
		return nil, err
	}

	if rec.MutationVersions, err = readVersions(r); err != nil {
		return nil, err
	}
	if rec.GraphVersions, err = readVersions(r); err != nil {
		return nil, err
	}

	hasRemoved, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasRemoved == 1 {
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		rec.RemovedAtVersion = &v
	}

	return rec, nil
}

func writeVersions(buf *bytes.Buffer, versions []uint64) {
	writeUint32(buf, uint32(len(versions)))
	for _, v := range versions {
		writeUint64(buf, v)
	}
}

func readVersions(r *bytes.Reader) ([]uint64, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	versions := make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func writeEdgeGroups(buf *bytes.Buffer, groups []EdgeGroup) {
	writeUint32(buf, uint32(len(groups)))
	for _, g := range groups {
		writeString(buf, g.Label)
		writeUint32(buf, uint32(len(g.Edges)))
		for _, e := range g.Edges {
			writeString(buf, e.Name)
			writeVersions(buf, e.Versions)
		}
	}
}

func readEdgeGroups(r *bytes.Reader) ([]EdgeGroup, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	groups := make([]EdgeGroup, 0, count)
	for i := uint32(0); i < count; i++ {
		label, err := readString(r)
		if err != nil {
			return nil, err
		}
		edgeCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		edges := make([]EdgeRef, 0, edgeCount)
		for j := uint32(0); j < edgeCount; j++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			versions, err := readVersions(r)
			if err != nil {
				return nil, err
			}
			edges = append(edges, EdgeRef{Name: name, Versions: versions})
		}
		groups = append(groups, EdgeGroup{Label: label, Edges: edges})
	}
	return groups, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
