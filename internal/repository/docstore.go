package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/xid"
)

// Document is a JSON object as held by a Collection. The primary key lives under "_id".
type Document map[string]any

const idField = "_id"

var ErrNoDocuments = errors.New("no documents in result")

var collectionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ElemMatch selects the elements of the array at Path whose Field equals Value.
type ElemMatch struct {
	Path  string
	Field string
	Value any
}

// Filter addresses a single document by primary key. Elem additionally
// requires a matching array element and fixes the index that "$" resolves
// to in Update.Set paths. NoElem requires that no element matches.
type Filter struct {
	ID     string
	Elem   *ElemMatch
	NoElem *ElemMatch
}

type PullMatch struct {
	Field string
	Value any
}

// Update is applied atomically to one document: Set, then Push, then Pull.
type Update struct {
	Set  map[string]any
	Push map[string]any
	Pull map[string]PullMatch
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

type Collection struct {
	db   *Database
	name string
}

func (db *Database) Collection(ctx context.Context, name string) (*Collection, error) {
	if !collectionName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	if err := db.createCollectionTable(ctx, name); err != nil {
		return nil, err
	}
	return &Collection{db: db, name: name}, nil
}

func (c *Collection) Find(ctx context.Context, limit int) ([]Document, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s ORDER BY id LIMIT %s`, c.name, c.db.dialect.bind(1))

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("Error trying to find documents in %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *Collection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	raw, err := c.selectDoc(ctx, c.db.DB, filter.ID, "")
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := filter.match(doc); !ok {
		return nil, ErrNoDocuments
	}
	return doc, nil
}

// InsertOne stores doc under a freshly generated identifier and returns it.
// Any "_id" already present in doc is replaced.
func (c *Collection) InsertOne(ctx context.Context, doc Document) (string, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return "", err
	}
	stored, ok := normalized.(map[string]any)
	if !ok {
		return "", errors.New("document must be a JSON object")
	}

	id := xid.New().String()
	stored[idField] = id

	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (%s, %s)`,
		c.name, c.db.dialect.bind(1), c.db.dialect.bind(2))
	if _, err := c.db.ExecContext(ctx, query, id, string(raw)); err != nil {
		return "", fmt.Errorf("Error trying to insert into %s: %w", c.name, err)
	}
	return id, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateResult{}, err
	}
	defer tx.Rollback()

	raw, err := c.selectDoc(ctx, tx, filter.ID, c.db.dialect.forUpdate)
	if errors.Is(err, ErrNoDocuments) {
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, err
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return UpdateResult{}, err
	}
	pos, ok := filter.match(doc)
	if !ok {
		return UpdateResult{}, nil
	}

	if err := update.apply(doc, pos); err != nil {
		return UpdateResult{}, err
	}
	updated, err := json.Marshal(doc)
	if err != nil {
		return UpdateResult{}, err
	}
	if string(updated) == raw {
		return UpdateResult{MatchedCount: 1}, tx.Commit()
	}

	query := fmt.Sprintf(`UPDATE %s SET doc = %s WHERE id = %s`,
		c.name, c.db.dialect.bind(1), c.db.dialect.bind(2))
	if _, err := tx.ExecContext(ctx, query, string(updated), filter.ID); err != nil {
		return UpdateResult{}, fmt.Errorf("Error trying to update %s: %w", c.name, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return DeleteResult{}, err
	}
	defer tx.Rollback()

	raw, err := c.selectDoc(ctx, tx, filter.ID, c.db.dialect.forUpdate)
	if errors.Is(err, ErrNoDocuments) {
		return DeleteResult{}, nil
	}
	if err != nil {
		return DeleteResult{}, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return DeleteResult{}, err
	}
	if _, ok := filter.match(doc); !ok {
		return DeleteResult{}, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, c.name, c.db.dialect.bind(1))
	res, err := tx.ExecContext(ctx, query, filter.ID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("Error trying to delete from %s: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{DeletedCount: n}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Collection) selectDoc(ctx context.Context, q queryer, id, suffix string) (string, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = %s%s`, c.name, c.db.dialect.bind(1), suffix)

	var raw string
	err := q.QueryRowContext(ctx, query, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoDocuments
	}
	if err != nil {
		return "", fmt.Errorf("Error trying to read from %s: %w", c.name, err)
	}
	return raw, nil
}

func decodeDocument(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("Error trying to decode document: %w", err)
	}
	return doc, nil
}

// normalize converts v into the shape it takes after a round trip through
// the stored JSON, so values compare equal to what a later read returns.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// match reports whether doc satisfies f and, when f.Elem is set, the index of
// the first matching element (-1 otherwise).
func (f Filter) match(doc Document) (int, bool) {
	pos := -1
	if f.Elem != nil {
		pos = f.Elem.index(doc)
		if pos < 0 {
			return -1, false
		}
	}
	if f.NoElem != nil && f.NoElem.index(doc) >= 0 {
		return -1, false
	}
	return pos, true
}

func (m ElemMatch) index(doc Document) int {
	arr, ok := lookup(map[string]any(doc), m.Path).([]any)
	if !ok {
		return -1
	}
	want, err := normalize(m.Value)
	if err != nil {
		return -1
	}
	for i, elem := range arr {
		if fieldEquals(elem, m.Field, want) {
			return i
		}
	}
	return -1
}

func fieldEquals(elem any, field string, want any) bool {
	obj, ok := elem.(map[string]any)
	if !ok {
		return false
	}
	got, ok := obj[field]
	return ok && reflect.DeepEqual(got, want)
}

func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func (u Update) apply(doc Document, pos int) error {
	root := map[string]any(doc)

	for path, value := range u.Set {
		if path == idField {
			return errors.New("cannot modify _id")
		}
		v, err := normalize(value)
		if err != nil {
			return err
		}
		if err := setPath(root, strings.Split(path, "."), v, pos); err != nil {
			return err
		}
	}

	for path, value := range u.Push {
		v, err := normalize(value)
		if err != nil {
			return err
		}
		arr, err := arrayAt(root, path)
		if err != nil {
			return err
		}
		if err := setPath(root, strings.Split(path, "."), append(arr, v), pos); err != nil {
			return err
		}
	}

	for path, m := range u.Pull {
		want, err := normalize(m.Value)
		if err != nil {
			return err
		}
		arr, err := arrayAt(root, path)
		if err != nil {
			return err
		}
		kept := make([]any, 0, len(arr))
		for _, elem := range arr {
			if !fieldEquals(elem, m.Field, want) {
				kept = append(kept, elem)
			}
		}
		if err := setPath(root, strings.Split(path, "."), kept, pos); err != nil {
			return err
		}
	}

	return nil
}

func arrayAt(doc map[string]any, path string) ([]any, error) {
	switch v := lookup(doc, path).(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("field %q is not an array", path)
	}
}

func setPath(obj map[string]any, parts []string, value any, pos int) error {
	key := parts[0]
	if len(parts) == 1 {
		obj[key] = value
		return nil
	}

	next, ok := obj[key]
	if !ok || next == nil {
		child := map[string]any{}
		obj[key] = child
		next = child
	}

	switch node := next.(type) {
	case map[string]any:
		return setPath(node, parts[1:], value, pos)
	case []any:
		idx, err := arrayIndex(parts[1], pos, len(node))
		if err != nil {
			return err
		}
		if len(parts) == 2 {
			node[idx] = value
			return nil
		}
		elem, ok := node[idx].(map[string]any)
		if !ok {
			return fmt.Errorf("element %d of %q is not a document", idx, key)
		}
		return setPath(elem, parts[2:], value, pos)
	default:
		return fmt.Errorf("field %q is not a document", key)
	}
}

func arrayIndex(part string, pos, length int) (int, error) {
	if part == "$" {
		if pos < 0 {
			return 0, errors.New("positional operator requires an element match in the filter")
		}
		return pos, nil
	}
	idx, err := strconv.Atoi(part)
	if err != nil || idx < 0 || idx >= length {
		return 0, fmt.Errorf("invalid array index %q", part)
	}
	return idx, nil
}
