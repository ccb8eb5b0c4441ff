// Package archive mirrors a graph's changelog into a CouchDB database for
// durable audit history, independent of the bbolt-backed changelog bucket
// that the kv/store packages use for live reads. It is optional: a Sink is
// only wired in when a deployment configures an archive URL.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"time"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb" // CouchDB driver

	"github.com/evalgo/rangedb/store"
)

// Config configures a Sink's connection to its backing CouchDB database.
type Config struct {
	URL             string // CouchDB server URL
	Database        string // database name holding archived entries
	Username        string
	Password        string
	Timeout         time.Duration
	CreateIfMissing bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:             "http://localhost:5984",
		Database:        "rangedb_audit",
		Timeout:         30 * time.Second,
		CreateIfMissing: true,
	}
}

// Sink archives store.ChangeRecord entries as CouchDB documents, one per
// (graph name, seq) pair, so a graph's full mutation history survives
// independent of its live changelog bucket's retention.
type Sink struct {
	client   *kivik.Client
	database *kivik.DB
	dbName   string
}

// entryDoc is the document shape written for each archived change.
type entryDoc struct {
	ID        string         `json:"_id"`
	GraphName string         `json:"graph_name"`
	Seq       uint64         `json:"seq"`
	Op        store.ChangeOp `json:"op"`
	NodeType  string         `json:"node_type"`
	NodeName  string         `json:"node_name"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewSink connects to CouchDB per cfg, creating the database if it does
// not exist and cfg.CreateIfMissing is set.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	connectionURL, err := buildConnectionURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: build connection url: %w", err)
	}

	client, err := kivik.New("couch", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("archive: create couchdb client: %w", err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	exists, err := client.DBExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("archive: check database existence: %w", err)
	}
	if !exists {
		if !cfg.CreateIfMissing {
			return nil, fmt.Errorf("archive: database %s does not exist", cfg.Database)
		}
		if err := client.CreateDB(ctx, cfg.Database); err != nil {
			return nil, fmt.Errorf("archive: create database %s: %w", cfg.Database, err)
		}
	}

	return &Sink{
		client:   client,
		database: client.DB(cfg.Database),
		dbName:   cfg.Database,
	}, nil
}

func buildConnectionURL(cfg Config) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("database URL cannot be empty")
	}
	if cfg.Username == "" && cfg.Password == "" {
		return cfg.URL, nil
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	parsed.User = url.UserPassword(cfg.Username, cfg.Password)
	return parsed.String(), nil
}

// Archive writes rec as a document keyed by graphName and rec.Seq. The
// document is put without a revision, so an existing document is not
// overwritten: writing a (graphName, seq) pair that is already archived
// fails with CouchDB's conflict error.
func (s *Sink) Archive(ctx context.Context, graphName string, rec store.ChangeRecord) error {
	doc := entryDoc{
		ID:        docID(graphName, rec.Seq),
		GraphName: graphName,
		Seq:       rec.Seq,
		Op:        rec.Op,
		NodeType:  rec.NodeType,
		NodeName:  rec.NodeName,
		Timestamp: rec.Timestamp,
	}
	if _, err := s.database.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("archive: put entry %s: %w", doc.ID, err)
	}
	return nil
}

// Since returns every archived entry for graphName with seq >= fromSeq, in
// ascending seq order, for replaying or auditing a graph's full history.
func (s *Sink) Since(ctx context.Context, graphName string, fromSeq uint64) ([]store.ChangeRecord, error) {
	rows := s.database.Find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"graph_name": graphName,
			"seq":        map[string]interface{}{"$gte": fromSeq},
		},
		"sort": []map[string]string{{"seq": "asc"}},
	})
	defer rows.Close()

	var out []store.ChangeRecord
	for rows.Next() {
		var doc entryDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("archive: scan entry: %w", err)
		}
		out = append(out, store.ChangeRecord{
			Seq:       doc.Seq,
			Op:        doc.Op,
			NodeType:  doc.NodeType,
			NodeName:  doc.NodeName,
			Timestamp: doc.Timestamp,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate entries: %w", err)
	}
	return out, nil
}

// Close releases the underlying CouchDB client connection.
func (s *Sink) Close() error {
	return s.client.Close()
}

func docID(graphName string, seq uint64) string {
	return fmt.Sprintf("%s:%020d", graphName, seq)
}
