package requirements

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExportYAMLRoundTrip(t *testing.T) {
	doc := Document{
		Functional: []Item{{ID: "f1", Title: "ユーザー登録", Description: "メールで登録", Priority: PriorityHigh}},
		Wishes:     []Item{{ID: "w1", Title: "ダークモード", Description: "yes"}},
	}
	exp := NewExport(doc, nil, "reqchat", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := MarshalExportYAML(exp)
	if err != nil {
		t.Fatalf("MarshalExportYAML: %v", err)
	}
	text := string(data)
	if strings.Index(text, "exportInfo:") > strings.Index(text, "requirements:") {
		t.Errorf("field order not preserved:\n%s", text)
	}
	if !strings.Contains(text, "systemArchitecture: null") {
		t.Errorf("missing null architecture:\n%s", text)
	}
	if strings.Contains(text, "{") {
		t.Errorf("flow style leaked into output:\n%s", text)
	}

	got, err := ParseImportYAML(data)
	if err != nil {
		t.Fatalf("ParseImportYAML: %v", err)
	}
	if !reflect.DeepEqual(got.Requirements.Functional, doc.Functional) {
		t.Errorf("functional = %+v", got.Requirements.Functional)
	}
	if len(got.Requirements.Wishes) != 1 || got.Requirements.Wishes[0].Description != "yes" {
		t.Errorf("wishes = %+v", got.Requirements.Wishes)
	}
	if got.SystemArchitecture != nil {
		t.Errorf("architecture = %+v, want nil", got.SystemArchitecture)
	}
}

func TestParseImportYAML_MissingCategoryRejected(t *testing.T) {
	data := []byte(`requirements:
  functional: []
  nonFunctional: []
  constraints: []
  designGuidelines: []
`)
	if _, err := ParseImportYAML(data); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
	if _, err := ParseImportYAML([]byte("a: [b")); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}
