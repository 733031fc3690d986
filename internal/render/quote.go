// Package render turns requirement state into the plain-text documents shown
// to the user: the quote request and the validation chat message. All
// functions are pure.
package render

import (
	"fmt"
	"strings"

	"github.com/kalambet/reqchat/internal/requirements"
)

// Placeholder is rendered while there is nothing to quote.
const Placeholder = `# システム開発 見積依頼書

要件がまだ揃っていません。
チャットで作りたいシステムについて説明すると、要件とシステム構成がまとまり次第ここに見積依頼書が表示されます。
`

// Outdated is rendered while the architecture on hand was derived from an
// older requirement set and no fresh one is available.
const Outdated = `# システム開発 見積依頼書

要件が更新されたため、システム構成を再生成しています。
再生成に失敗した場合は「アーキテクチャを再生成」を実行してください。
`

// CustomArchitectureLabel is shown for architecture types outside the known set.
const CustomArchitectureLabel = "カスタム構成"

var architectureLabels = map[string]string{
	requirements.ArchitectureMonolithic:    "モノリシックアーキテクチャ",
	requirements.ArchitectureMicroservices: "マイクロサービスアーキテクチャ",
	requirements.ArchitectureServerless:    "サーバーレスアーキテクチャ",
	requirements.ArchitectureSPAAPI:        "SPA + API 構成",
	requirements.ArchitectureMobileBackend: "モバイルバックエンド構成",
	requirements.ArchitectureEventDriven:   "イベント駆動アーキテクチャ",
}

var deploymentLabels = map[string]string{
	requirements.DeployCloud:     "クラウド",
	requirements.DeployOnPremise: "オンプレミス",
	requirements.DeployHybrid:    "ハイブリッド",
}

var categoryLabels = map[requirements.Category]string{
	requirements.Functional:       "機能要件",
	requirements.NonFunctional:    "非機能要件",
	requirements.Constraints:      "制約条件",
	requirements.Wishes:           "要望",
	requirements.DesignGuidelines: "デザインガイドライン",
}

var componentLabels = map[string]string{
	"frontend":       "フロントエンド",
	"backend":        "バックエンド",
	"database":       "データベース",
	"infrastructure": "インフラ",
	"security":       "セキュリティ",
	"integration":    "外部連携",
}

// ArchitectureLabel returns the display label of an architecture type.
// Unknown types get CustomArchitectureLabel.
func ArchitectureLabel(t string) string {
	if l, ok := architectureLabels[t]; ok {
		return l
	}
	return CustomArchitectureLabel
}

func label(m map[string]string, k string) string {
	if l, ok := m[k]; ok {
		return l
	}
	return k
}

// CategoryLabel returns the Japanese heading of a requirement category.
func CategoryLabel(c requirements.Category) string { return categoryLabels[c] }

// Quote renders the quote request document. It returns Placeholder when the
// store is empty or no architecture has been derived.
func Quote(doc requirements.Document, arch *requirements.Architecture) string {
	if arch == nil || doc.IsEmpty() {
		return Placeholder
	}

	var b strings.Builder
	b.WriteString("# システム開発 見積依頼書\n\n")

	b.WriteString("## 1. システム概要\n\n")
	fmt.Fprintf(&b, "- アーキテクチャ: %s\n", ArchitectureLabel(arch.ArchitectureType))
	fmt.Fprintf(&b, "- デプロイ環境: %s\n", label(deploymentLabels, arch.DeploymentEnvironment))
	fmt.Fprintf(&b, "- 要件数: %d件\n\n", doc.Total())

	b.WriteString("## 2. 要件一覧\n\n")
	for _, c := range requirements.Categories {
		items := doc.Items(c)
		fmt.Fprintf(&b, "### %s（%d件）\n", categoryLabels[c], len(items))
		for _, it := range items {
			fmt.Fprintf(&b, "- %s: %s\n", it.Title, it.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## 3. システム構成\n\n")
	for _, comp := range arch.Components {
		fmt.Fprintf(&b, "### %s（%s）\n", comp.Name, label(componentLabels, comp.Type))
		if comp.Description != "" {
			fmt.Fprintf(&b, "%s\n", comp.Description)
		}
		fmt.Fprintf(&b, "- 採用技術: %s\n", strings.Join(comp.Technologies, ", "))
		if comp.Justification != "" {
			fmt.Fprintf(&b, "- 選定理由: %s\n", comp.Justification)
		}
		b.WriteString("\n")
	}

	bullets(&b, "## 4. ネットワーク要件", arch.NetworkRequirements)
	bullets(&b, "## 5. セキュリティ対策", arch.SecurityMeasures)
	bullets(&b, "## 6. スケーラビリティ", arch.ScalabilityConsiderations)

	b.WriteString("## 7. ご依頼事項\n\n")
	b.WriteString("上記の要件およびシステム構成に基づき、開発費用・開発期間・体制のお見積りをお願いいたします。\n")
	return b.String()
}

func bullets(b *strings.Builder, heading string, items []string) {
	b.WriteString(heading)
	b.WriteString("\n\n")
	for _, s := range items {
		fmt.Fprintf(b, "- %s\n", s)
	}
	b.WriteString("\n")
}
