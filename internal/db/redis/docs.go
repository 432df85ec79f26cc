package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cardex/internal/db"
)

func (s *Store) docKey(collection, id string) string {
	return s.prefix + collection + ":" + id
}

// Load fetches every document of a collection: SCAN for keys, then pipelined GETs.
func (s *Store) Load(ctx context.Context, collection string) ([]db.Document, error) {
	keys, err := s.scan(ctx, s.docKey(collection, "*"))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Get().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]db.Document, 0, len(results))
	for i, res := range results {
		raw, err := res.AsBytes()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue // deleted between SCAN and GET
			}
			return nil, &db.Error{Op: db.OpGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Get fetches one document.
func (s *Store) Get(ctx context.Context, collection, id string) (db.Document, error) {
	cmd := s.b().Get().Key(s.docKey(collection, id)).Build()
	raw, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrDocumentNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return decodeDocument(raw)
}

// Put stores a document as JSON.
func (s *Store) Put(ctx context.Context, collection string, doc db.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID(), err)
	}
	cmd := s.b().Set().Key(s.docKey(collection, doc.ID())).Value(string(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Remove deletes a document.
func (s *Store) Remove(ctx context.Context, collection, id string) error {
	n, err := s.del(ctx, s.docKey(collection, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrDocumentNotFound
	}
	return nil
}

func decodeDocument(raw []byte) (db.Document, error) {
	var doc db.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid document json: %w", err)
	}
	return doc, nil
}
