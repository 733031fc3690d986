package requirements

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func item(id, title string) Item {
	return Item{ID: id, Title: title, Description: title + " desc"}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestMerge_AdditiveKeepsExisting(t *testing.T) {
	current := Document{
		Functional:  []Item{item("f1", "login"), item("f2", "signup")},
		Constraints: []Item{item("c1", "budget")},
	}
	incoming := Document{
		Functional: []Item{item("f3", "search")},
		Wishes:     []Item{item("w1", "dark mode")},
	}

	res := Merge(current, incoming, MergeAdditive)

	if got, want := ids(res.Document.Functional), []string{"f1", "f2", "f3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("functional ids = %v, want %v", got, want)
	}
	if got, want := ids(res.Document.Constraints), []string{"c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("constraints ids = %v, want %v", got, want)
	}
	if len(res.Document.Wishes) != 1 {
		t.Errorf("wishes = %d, want 1", len(res.Document.Wishes))
	}
	if res.Added != 2 || res.TotalBefore != 3 || res.TotalAfter != 5 {
		t.Errorf("result = %+v, want added 2, before 3, after 5", res)
	}
	if len(current.Functional) != 2 {
		t.Error("Merge modified its input")
	}
}

func TestMerge_AdditiveSequenceNeverDropsIDs(t *testing.T) {
	store := Clear()
	batches := []Document{
		{Functional: []Item{item("a", "one")}},
		{Functional: []Item{item("a", "one"), item("b", "two")}},
		{},
		{NonFunctional: []Item{item("a", "fast")}, Functional: []Item{item("a", "changed")}},
	}

	for i, b := range batches {
		before := store
		store = Merge(store, b, MergeAdditive).Document
		for _, c := range Categories {
			have := make(map[string]Item)
			for _, it := range store.Items(c) {
				have[it.ID] = it
			}
			for _, it := range before.Items(c) {
				got, ok := have[it.ID]
				if !ok {
					t.Fatalf("batch %d: %s item %q dropped", i, c, it.ID)
				}
				if got != it {
					t.Fatalf("batch %d: %s item %q changed: %+v -> %+v", i, c, it.ID, it, got)
				}
			}
		}
	}
}

func TestMerge_EchoSkipped(t *testing.T) {
	current := Document{Functional: []Item{item("f1", "login")}}
	res := Merge(current, current, MergeAdditive)

	if res.Added != 0 || res.Skipped != 1 {
		t.Errorf("added=%d skipped=%d, want 0 and 1", res.Added, res.Skipped)
	}
	if len(res.Document.Functional) != 1 {
		t.Errorf("functional = %d, want 1", len(res.Document.Functional))
	}
}

func TestMerge_CollidingIDGetsFreshID(t *testing.T) {
	current := Document{Functional: []Item{item("f1", "login")}}
	incoming := Document{Functional: []Item{item("f1", "export csv"), {Title: "no id"}}}

	got := Merge(current, incoming, MergeAdditive).Document.Functional
	if len(got) != 3 {
		t.Fatalf("functional = %d, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, it := range got {
		if it.ID == "" {
			t.Error("item without id")
		}
		if seen[it.ID] {
			t.Errorf("duplicate id %q", it.ID)
		}
		seen[it.ID] = true
	}
	if got[0] != current.Functional[0] {
		t.Errorf("existing item changed: %+v", got[0])
	}
}

func TestMerge_ReplaceFlagsLoss(t *testing.T) {
	current := Document{Functional: []Item{item("1", "a"), item("2", "b"), item("3", "c"), item("4", "d"), item("5", "e")}}
	incoming := Document{Functional: []Item{item("1", "a"), item("2", "b")}}

	res := Merge(current, incoming, MergeReplace)
	if !res.LossSuspected() {
		t.Errorf("LossSuspected() = false for %d -> %d", res.TotalBefore, res.TotalAfter)
	}
	if got := ids(res.Document.Functional); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("functional ids = %v", got)
	}

	if Merge(current, current, MergeReplace).LossSuspected() {
		t.Error("LossSuspected() = true for an unchanged store")
	}
}

func TestParseMergePolicy(t *testing.T) {
	for in, want := range map[string]MergePolicy{"": MergeAdditive, "additive": MergeAdditive, "replace": MergeReplace} {
		got, err := ParseMergePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseMergePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMergePolicy("overwrite"); err == nil {
		t.Error("ParseMergePolicy(overwrite) succeeded, want error")
	}
}

func TestDelete_RemovesOnlyTarget(t *testing.T) {
	d := Document{
		Functional: []Item{item("x", "a"), item("y", "b"), item("z", "c")},
		Wishes:     []Item{item("y", "wish")},
	}

	out, ok := Delete(d, Functional, "y")
	if !ok {
		t.Fatal("Delete returned false")
	}
	if got := ids(out.Functional); !reflect.DeepEqual(got, []string{"x", "z"}) {
		t.Errorf("functional ids = %v, want [x z]", got)
	}
	if got := ids(out.Wishes); !reflect.DeepEqual(got, []string{"y"}) {
		t.Errorf("wishes ids = %v, want [y]", got)
	}
	if len(d.Functional) != 3 {
		t.Error("Delete modified its input")
	}

	if _, ok := Delete(d, Constraints, "x"); ok {
		t.Error("Delete of unknown id returned true")
	}
}

func TestClear_AllCategoriesEmpty(t *testing.T) {
	d := Clear()
	if !d.IsEmpty() {
		t.Fatal("Clear() is not empty")
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"functional":[],"nonFunctional":[],"constraints":[],"wishes":[],"designGuidelines":[]}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"functional":        Functional,
		"non-functional":    NonFunctional,
		"nonFunctional":     NonFunctional,
		"constraint":        Constraints,
		"wishes":            Wishes,
		"design-guidelines": DesignGuidelines,
	}
	for in, want := range cases {
		if got, ok := ParseCategory(in); !ok || got != want {
			t.Errorf("ParseCategory(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseCategory("misc"); ok {
		t.Error("ParseCategory(misc) succeeded")
	}
}

func TestParseImport_MissingCategoryRejected(t *testing.T) {
	data := []byte(`{"exportInfo":{"version":"1.0"},"requirements":{"functional":[],"nonFunctional":[],"constraints":[],"designGuidelines":[]},"systemArchitecture":null}`)
	_, err := ParseImport(data)
	if !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestParseImport_NonArrayRejected(t *testing.T) {
	data := []byte(`{"requirements":{"functional":{},"nonFunctional":[],"constraints":[],"wishes":[],"designGuidelines":[]}}`)
	if _, err := ParseImport(data); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
	if _, err := ParseImport([]byte(`not json`)); !errors.Is(err, ErrInvalidImport) {
		t.Fatalf("err = %v, want ErrInvalidImport", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	doc := Document{Functional: []Item{{ID: "f1", Title: "ユーザー登録", Description: "メールで登録", Priority: PriorityHigh}}}
	arch := &Architecture{ArchitectureType: ArchitectureServerless, DeploymentEnvironment: DeployCloud}
	exp := NewExport(doc, arch, "reqchat", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := json.Marshal(exp)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseImport(data)
	if err != nil {
		t.Fatalf("ParseImport: %v", err)
	}
	if got.ExportInfo.TotalRequirements != 1 {
		t.Errorf("TotalRequirements = %d, want 1", got.ExportInfo.TotalRequirements)
	}
	if !reflect.DeepEqual(got.Requirements.Functional, doc.Functional) {
		t.Errorf("functional = %+v", got.Requirements.Functional)
	}
	if got.SystemArchitecture == nil || got.SystemArchitecture.ArchitectureType != ArchitectureServerless {
		t.Errorf("architecture = %+v", got.SystemArchitecture)
	}
}

func TestCheckDocument(t *testing.T) {
	d := Document{Functional: []Item{{ID: "1", Title: "a", Priority: "HIGH"}}}
	if err := CheckDocument(&d); err != nil {
		t.Fatalf("CheckDocument: %v", err)
	}
	if d.Functional[0].Priority != PriorityHigh {
		t.Errorf("priority = %q, want high", d.Functional[0].Priority)
	}

	bad := []Document{
		{Wishes: []Item{{ID: "1"}}},
		{Constraints: []Item{{ID: "1", Title: "a", Priority: "urgent"}}},
	}
	for i, d := range bad {
		if err := CheckDocument(&d); !errors.Is(err, ErrSchema) {
			t.Errorf("case %d: err = %v, want ErrSchema", i, err)
		}
	}
}

func TestCheckArchitecture(t *testing.T) {
	a := Architecture{
		ArchitectureType:      ArchitectureMicroservices,
		DeploymentEnvironment: DeployHybrid,
		Components:            []Component{{ID: "c1", Name: "API", Type: "backend"}},
	}
	if err := CheckArchitecture(&a); err != nil {
		t.Fatalf("CheckArchitecture: %v", err)
	}
	if a.Components[0].Technologies == nil || a.SecurityMeasures == nil {
		t.Error("nil lists were not replaced")
	}

	bad := []Architecture{
		{DeploymentEnvironment: DeployCloud},
		{ArchitectureType: "x", DeploymentEnvironment: "mainframe"},
		{ArchitectureType: "x", DeploymentEnvironment: DeployCloud, Components: []Component{{Name: "q", Type: "queue"}}},
	}
	for i, a := range bad {
		if err := CheckArchitecture(&a); !errors.Is(err, ErrSchema) {
			t.Errorf("case %d: err = %v, want ErrSchema", i, err)
		}
	}
}

func TestValidationPassed(t *testing.T) {
	cases := map[int]bool{0: false, 45: false, 49: false, 50: true, 100: true}
	for score, want := range cases {
		if got := (ValidationResult{CompletenessScore: score}).Passed(); got != want {
			t.Errorf("Passed(%d) = %v, want %v", score, got, want)
		}
	}
}
