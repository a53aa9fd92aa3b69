package docjson

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestEncodeDecodeKeepsTypes(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":   "user_1",
		"_type": "User",
		"age":   int32(36),
		"score": int64(1 << 40),
		"ratio": 0.5,
		"when":  when,
		"addr":  bson.M{"city": "london"},
		"tags":  bson.A{"a", "b"},
	}

	body, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatal(err)
	}

	if got["age"] != int32(36) {
		t.Fatalf("expected int32 age, got %#v", got["age"])
	}
	if got["score"] != int64(1<<40) {
		t.Fatalf("expected int64 score, got %#v", got["score"])
	}
	if dt, ok := got["when"].(bson.DateTime); !ok || !dt.Time().Equal(when) {
		t.Fatalf("expected datetime, got %#v", got["when"])
	}
	addr, ok := got["addr"].(bson.M)
	if !ok || addr["city"] != "london" {
		t.Fatalf("expected nested document, got %#v", got["addr"])
	}
	if tags, ok := got["tags"].(bson.A); !ok || len(tags) != 2 {
		t.Fatalf("expected array, got %#v", got["tags"])
	}
}

func TestTypeOf(t *testing.T) {
	if TypeOf(bson.M{}, "_type") != nil {
		t.Fatal("expected nil type for untagged document")
	}
	if v := TypeOf(bson.M{"_type": "User"}, "_type"); v == nil || *v != "User" {
		t.Fatalf("unexpected type %v", v)
	}
}

func TestPrefilter(t *testing.T) {
	key, typeName := Prefilter(bson.M{"_id": "x", "_type": "User", "name": "ada"}, "_type")
	if key != "x" || typeName != "User" {
		t.Fatalf("got %q %q", key, typeName)
	}
	key, typeName = Prefilter(bson.M{"_id": bson.M{"$in": bson.A{"x"}}}, "_type")
	if key != "" || typeName != "" {
		t.Fatalf("operator conditions must not prefilter, got %q %q", key, typeName)
	}
}

func TestValidField(t *testing.T) {
	for _, f := range []string{"_type", "email", "addr.city", "tags.0"} {
		if !ValidField(f) {
			t.Fatalf("expected %q valid", f)
		}
	}
	for _, f := range []string{"", "a;drop", "a b", ".a", "a..b", "$set"} {
		if ValidField(f) {
			t.Fatalf("expected %q invalid", f)
		}
	}
}
