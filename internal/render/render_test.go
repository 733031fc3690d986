package render

import (
	"strings"
	"testing"

	"github.com/kalambet/reqchat/internal/requirements"
)

func sampleArch() *requirements.Architecture {
	return &requirements.Architecture{
		ArchitectureType:      requirements.ArchitectureSPAAPI,
		DeploymentEnvironment: requirements.DeployCloud,
		Components: []requirements.Component{
			{ID: "c1", Name: "Web", Type: "frontend", Technologies: []string{"React", "TypeScript"}},
		},
		NetworkRequirements: []string{"HTTPS 通信"},
		SecurityMeasures:    []string{},
	}
}

func sampleDoc() requirements.Document {
	return requirements.Document{
		Functional: []requirements.Item{
			{ID: "f1", Title: "ユーザー登録", Description: "メールアドレスで登録"},
			{ID: "f2", Title: "ログイン", Description: "パスワード認証"},
		},
		Wishes: []requirements.Item{{ID: "w1", Title: "ダークモード", Description: "夜間用"}},
	}
}

func TestQuote_Placeholder(t *testing.T) {
	if got := Quote(sampleDoc(), nil); got != Placeholder {
		t.Error("nil architecture should render the placeholder")
	}
	if got := Quote(requirements.Document{}, sampleArch()); got != Placeholder {
		t.Error("empty store should render the placeholder")
	}
}

func TestQuote_CountsAndBullets(t *testing.T) {
	out := Quote(sampleDoc(), sampleArch())

	for _, want := range []string{
		"### 機能要件（2件）",
		"### 非機能要件（0件）",
		"### 要望（1件）",
		"- ユーザー登録: メールアドレスで登録",
		"- ログイン: パスワード認証",
		"SPA + API 構成",
		"クラウド",
		"### Web（フロントエンド）",
		"- 採用技術: React, TypeScript",
		"- HTTPS 通信",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestQuote_EmptySectionsKeepHeaders(t *testing.T) {
	out := Quote(sampleDoc(), sampleArch())
	idx := strings.Index(out, "## 5. セキュリティ対策\n\n")
	if idx < 0 {
		t.Fatal("security header missing")
	}
	rest := out[idx+len("## 5. セキュリティ対策\n\n"):]
	if !strings.HasPrefix(rest, "\n## 6.") {
		t.Errorf("empty security section has content: %q", rest[:20])
	}
}

func TestQuote_UnknownArchitectureFallsBack(t *testing.T) {
	a := sampleArch()
	a.ArchitectureType = "hexagonal_v2"
	out := Quote(sampleDoc(), a)
	if !strings.Contains(out, "- アーキテクチャ: カスタム構成\n") {
		t.Errorf("unknown type should use the fallback label:\n%s", out)
	}
	if strings.Contains(out, "hexagonal_v2") {
		t.Error("raw architecture type leaked into the document")
	}
}

func TestQuote_Deterministic(t *testing.T) {
	doc, arch := sampleDoc(), sampleArch()
	first := Quote(doc, arch)
	for range 5 {
		if Quote(doc, arch) != first {
			t.Fatal("output differs between calls")
		}
	}
}

func TestValidation_Boundary(t *testing.T) {
	fail := Validation(requirements.ValidationResult{OverallStatus: requirements.StatusWarning, CompletenessScore: 45})
	if !strings.Contains(fail, "要検討") || strings.Contains(fail, "合格") {
		t.Errorf("score 45: %q", fail)
	}
	pass := Validation(requirements.ValidationResult{OverallStatus: requirements.StatusGood, CompletenessScore: 50})
	if !strings.Contains(pass, "✅ 合格") {
		t.Errorf("score 50: %q", pass)
	}
}

func TestValidation_Sections(t *testing.T) {
	out := Validation(requirements.ValidationResult{
		OverallStatus:       requirements.StatusCritical,
		MissingRequirements: []string{"認証方式"},
		Recommendations:     []string{"非機能要件を追加"},
		CompletenessScore:   20,
		CriticalQuestions:   requirements.CriticalQuestions{UserScopeMissing: true},
	})
	for _, want := range []string{"🔴 要対応", "- 認証方式", "- 非機能要件を追加", "利用者の範囲"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "矛盾") {
		t.Error("empty contradictions section rendered")
	}
}
