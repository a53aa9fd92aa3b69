package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/mantle/id"
)

func TestPrefixFor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want id.Prefix
	}{
		{"simple", "User", "user"},
		{"camel", "OrderLine", "orderline"},
		{"separators", "order-line item", "order_line_item"},
		{"trim underscores", "_Audit_", "audit"},
		{"digits dropped", "V2Account", "vaccount"},
		{"empty", "", id.PrefixDocument},
		{"no letters", "123", id.PrefixDocument},
		{"too long", strings.Repeat("a", 64), id.PrefixDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := id.PrefixFor(tt.in); got != tt.want {
				t.Errorf("PrefixFor(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewDocumentID(t *testing.T) {
	got := id.NewDocumentID("User").String()
	if !strings.HasPrefix(got, "user_") {
		t.Errorf("expected prefix %q, got %q", "user_", got)
	}

	got = id.NewDocumentID("").String()
	if !strings.HasPrefix(got, "doc_") {
		t.Errorf("expected prefix %q, got %q", "doc_", got)
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixDocument)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixDocument {
		t.Errorf("expected prefix %q, got %q", id.PrefixDocument, i.Prefix())
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewDocumentID("User")
	parsed, err := id.ParseWithPrefix(i.String(), "user")
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixDocument)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewDocumentID("Note")
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var restored2 id.ID
	if err := restored2.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewDocumentID("User")
	b := id.NewDocumentID("User")
	if a.String() == b.String() {
		t.Errorf("two consecutive calls returned the same ID: %q", a.String())
	}
}
