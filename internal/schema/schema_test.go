package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("unmarshal %s: %v", s, err)
	}
	return v
}

func TestValidate(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	tests := []struct {
		name  string
		kind  Kind
		doc   string
		valid bool
	}{
		{"task minimal", Task, `{"title":"A","description":"B"}`, true},
		{"task with null id", Task, `{"id":null,"title":"A","description":"B"}`, true},
		{"task with comments", Task, `{"title":"A","description":"B","comments":[{"content":"hi"}]}`, true},
		{"task missing description", Task, `{"title":"A"}`, false},
		{"task bad completed", Task, `{"title":"A","description":"B","completed":1}`, false},
		{"task nested comment missing content", Task, `{"title":"A","description":"B","comments":[{"id":"x"}]}`, false},
		{"patch empty", TaskPatch, `{}`, true},
		{"patch completed", TaskPatch, `{"completed":false}`, true},
		{"patch unknown field", TaskPatch, `{"owner":"ana"}`, false},
		{"patch wrong type", TaskPatch, `{"title":3}`, false},
		{"comment minimal", Comment, `{"content":"hi"}`, true},
		{"comment with uuid", Comment, `{"id":"5b0f0c8e-6f57-4a8e-9a57-6f1d2f3a4b5c","content":"hi"}`, true},
		{"comment bad uuid", Comment, `{"id":"nope","content":"hi"}`, false},
		{"comment bad created_at", Comment, `{"content":"hi","created_at":"yesterday"}`, false},
		{"comment update", CommentUpdate, `{"content":"x"}`, true},
		{"comment update missing content", CommentUpdate, `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.kind, decode(t, tt.doc))
			if tt.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.valid {
				var schemaErr *Error
				if !errors.As(err, &schemaErr) {
					t.Fatalf("err=%v want *Error", err)
				}
				if len(schemaErr.Problems) == 0 {
					t.Fatalf("expected at least one problem")
				}
			}
		})
	}
}

func TestValidate_ReportsFieldPath(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	err = v.Validate(TaskPatch, decode(t, `{"title":3}`))
	if err == nil || !strings.Contains(err.Error(), "title") {
		t.Fatalf("err=%v want mention of title", err)
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	if err := v.Validate(Kind("nope.json"), decode(t, `{}`)); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
