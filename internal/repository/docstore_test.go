package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/xid"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := InitDB(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCollection(t *testing.T) *Collection {
	t.Helper()

	c, err := newTestDB(t).Collection(context.Background(), "docs")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	return c
}

func insert(t *testing.T, c *Collection, doc Document) string {
	t.Helper()

	id, err := c.InsertOne(context.Background(), doc)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func comments(t *testing.T, doc Document) []any {
	t.Helper()

	arr, ok := doc["comments"].([]any)
	if !ok {
		t.Fatalf("comments is %T, want array", doc["comments"])
	}
	return arr
}

func TestCollection_RejectsInvalidName(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Collection(context.Background(), "tasks; DROP TABLE x"); err == nil {
		t.Fatalf("expected error for invalid collection name")
	}
}

func TestInsertOne_GeneratesID(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()

	id := insert(t, c, Document{"title": "A", "_id": "client-supplied"})
	if _, err := xid.FromString(id); err != nil {
		t.Fatalf("id %q is not an xid: %v", id, err)
	}

	doc, err := c.FindOne(ctx, Filter{ID: id})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if doc["_id"] != id {
		t.Fatalf("_id=%v want %s", doc["_id"], id)
	}
	if doc["title"] != "A" {
		t.Fatalf("title=%v", doc["title"])
	}
}

func TestFindOne_Missing(t *testing.T) {
	c := newTestCollection(t)

	_, err := c.FindOne(context.Background(), Filter{ID: xid.New().String()})
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("err=%v want ErrNoDocuments", err)
	}
}

func TestFind_LimitAndOrder(t *testing.T) {
	c := newTestCollection(t)

	first := insert(t, c, Document{"n": 1})
	second := insert(t, c, Document{"n": 2})
	insert(t, c, Document{"n": 3})

	docs, err := c.Find(context.Background(), 2)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len=%d want 2", len(docs))
	}
	if docs[0]["_id"] != first || docs[1]["_id"] != second {
		t.Fatalf("unexpected order: %v, %v", docs[0]["_id"], docs[1]["_id"])
	}
}

func TestUpdateOne_SetNestedPath(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"title": "A"})

	res, err := c.UpdateOne(ctx, Filter{ID: id}, Update{Set: map[string]any{
		"title":      "B",
		"meta.owner": "ana",
	}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 1 || res.ModifiedCount != 1 {
		t.Fatalf("result=%+v", res)
	}

	doc, _ := c.FindOne(ctx, Filter{ID: id})
	if doc["title"] != "B" {
		t.Fatalf("title=%v", doc["title"])
	}
	meta, ok := doc["meta"].(map[string]any)
	if !ok || meta["owner"] != "ana" {
		t.Fatalf("meta=%v", doc["meta"])
	}
}

func TestUpdateOne_UnchangedReportsMatchedOnly(t *testing.T) {
	c := newTestCollection(t)
	id := insert(t, c, Document{"title": "A"})

	res, err := c.UpdateOne(context.Background(), Filter{ID: id}, Update{Set: map[string]any{"title": "A"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 1 || res.ModifiedCount != 0 {
		t.Fatalf("result=%+v want matched=1 modified=0", res)
	}
}

func TestUpdateOne_NoMatch(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"comments": []any{}})

	res, err := c.UpdateOne(ctx, Filter{ID: xid.New().String()}, Update{Set: map[string]any{"x": 1}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 0 {
		t.Fatalf("missing id matched: %+v", res)
	}

	res, err = c.UpdateOne(ctx,
		Filter{ID: id, Elem: &ElemMatch{Path: "comments", Field: "id", Value: "nope"}},
		Update{Set: map[string]any{"x": 1}},
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 0 {
		t.Fatalf("missing element matched: %+v", res)
	}
}

func TestUpdateOne_PushKeepsOrder(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"title": "A"})

	for _, content := range []string{"one", "two", "three"} {
		_, err := c.UpdateOne(ctx, Filter{ID: id}, Update{
			Push: map[string]any{"comments": map[string]any{"id": content, "content": content}},
		})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	doc, _ := c.FindOne(ctx, Filter{ID: id})
	arr := comments(t, doc)
	if len(arr) != 3 {
		t.Fatalf("len=%d want 3", len(arr))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got := arr[i].(map[string]any)["content"]; got != want {
			t.Fatalf("comments[%d]=%v want %s", i, got, want)
		}
	}
}

func TestUpdateOne_NoElemBlocksDuplicatePush(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"comments": []any{map[string]any{"id": "a"}}})

	res, err := c.UpdateOne(ctx,
		Filter{ID: id, NoElem: &ElemMatch{Path: "comments", Field: "id", Value: "a"}},
		Update{Push: map[string]any{"comments": map[string]any{"id": "a"}}},
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 0 {
		t.Fatalf("duplicate push matched: %+v", res)
	}
}

func TestUpdateOne_PositionalSet(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"comments": []any{
		map[string]any{"id": "a", "content": "first"},
		map[string]any{"id": "b", "content": "second"},
	}})

	res, err := c.UpdateOne(ctx,
		Filter{ID: id, Elem: &ElemMatch{Path: "comments", Field: "id", Value: "b"}},
		Update{Set: map[string]any{"comments.$.content": "edited"}},
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.ModifiedCount != 1 {
		t.Fatalf("result=%+v", res)
	}

	doc, _ := c.FindOne(ctx, Filter{ID: id})
	arr := comments(t, doc)
	if got := arr[0].(map[string]any)["content"]; got != "first" {
		t.Fatalf("comments[0].content=%v", got)
	}
	if got := arr[1].(map[string]any)["content"]; got != "edited" {
		t.Fatalf("comments[1].content=%v", got)
	}
}

func TestUpdateOne_PositionalRequiresElemMatch(t *testing.T) {
	c := newTestCollection(t)
	id := insert(t, c, Document{"comments": []any{map[string]any{"id": "a"}}})

	_, err := c.UpdateOne(context.Background(), Filter{ID: id}, Update{
		Set: map[string]any{"comments.$.content": "x"},
	})
	if err == nil {
		t.Fatalf("expected error for positional set without element match")
	}
}

func TestUpdateOne_RejectsIDChange(t *testing.T) {
	c := newTestCollection(t)
	id := insert(t, c, Document{"title": "A"})

	_, err := c.UpdateOne(context.Background(), Filter{ID: id}, Update{
		Set: map[string]any{"_id": "other"},
	})
	if err == nil {
		t.Fatalf("expected error when setting _id")
	}
}

func TestUpdateOne_Pull(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"comments": []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
		map[string]any{"id": "c"},
	}})

	_, err := c.UpdateOne(ctx, Filter{ID: id}, Update{
		Pull: map[string]PullMatch{"comments": {Field: "id", Value: "b"}},
	})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	doc, _ := c.FindOne(ctx, Filter{ID: id})
	arr := comments(t, doc)
	if len(arr) != 2 {
		t.Fatalf("len=%d want 2", len(arr))
	}
	if arr[0].(map[string]any)["id"] != "a" || arr[1].(map[string]any)["id"] != "c" {
		t.Fatalf("unexpected comments after pull: %v", arr)
	}
}

func TestDeleteOne(t *testing.T) {
	c := newTestCollection(t)
	ctx := context.Background()
	id := insert(t, c, Document{"title": "A"})

	res, err := c.DeleteOne(ctx, Filter{ID: id})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Fatalf("deleted=%d want 1", res.DeletedCount)
	}

	res, err = c.DeleteOne(ctx, Filter{ID: id})
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if res.DeletedCount != 0 {
		t.Fatalf("second delete removed %d documents", res.DeletedCount)
	}

	if _, err := c.FindOne(ctx, Filter{ID: id}); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("err=%v want ErrNoDocuments", err)
	}
}
