package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/mantle"
	"github.com/xraph/mantle/store/gedb"
)

type Post struct {
	mantle.Model `bson:",inline"`
	Title        string `bson:"title"`
}

func TestAuditRecordsMutations(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	s, err := gedb.New()
	if err != nil {
		t.Fatal(err)
	}
	eng, err := mantle.NewEngine(ctx, mantle.WithStore(s), mantle.WithPlugin(New(logger)))
	if err != nil {
		t.Fatal(err)
	}
	posts := mantle.MustDefine[Post](eng, "Post")

	p := &Post{Title: "hello"}
	if err := posts.Save(ctx, p); err != nil {
		t.Fatal(err)
	}
	id := p.ID
	if err := posts.Remove(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := posts.Get(ctx, id); err == nil {
		t.Fatal("expected not found")
	}

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatal(err)
		}
		records = append(records, rec)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %s", len(records), buf.String())
	}
	if records[0]["op"] != "save" || records[0]["id"] != id {
		t.Fatalf("unexpected save record %v", records[0])
	}
	if records[1]["op"] != "remove" || records[1]["id"] != id {
		t.Fatalf("unexpected remove record %v", records[1])
	}
	if records[2]["op"] != "get" || records[2]["level"] != "WARN" {
		t.Fatalf("unexpected failure record %v", records[2])
	}
}
