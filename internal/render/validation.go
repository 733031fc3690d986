package render

import (
	"fmt"
	"strings"

	"github.com/kalambet/reqchat/internal/requirements"
)

// Fixed chat messages appended when an oracle call fails or a merge looks
// destructive.
const (
	ValidationApology = "申し訳ありません。要件の検証中にエラーが発生しました。時間をおいて再度お試しください。"
	ExtractionApology = "申し訳ありません。メッセージの解析中にエラーが発生しました。もう一度送信してください。"
	LossWarning       = "⚠️ 今回の更新で要件の数が大きく減りました。意図しない変更の場合はエクスポート済みのデータから復元してください。"
)

var statusLines = map[string]string{
	requirements.StatusGood:     "🟢 良好",
	requirements.StatusWarning:  "🟡 注意",
	requirements.StatusCritical: "🔴 要対応",
}

// Validation formats a validation result as a chat message.
func Validation(v requirements.ValidationResult) string {
	var b strings.Builder
	b.WriteString("📋 要件の検証結果\n\n")

	verdict := "⚠️ 要検討"
	if v.Passed() {
		verdict = "✅ 合格"
	}
	fmt.Fprintf(&b, "判定: %s（完成度スコア: %d/100）\n", verdict, v.CompletenessScore)
	fmt.Fprintf(&b, "状態: %s\n", label(statusLines, v.OverallStatus))

	var questions []string
	if v.CriticalQuestions.SystemTypeMissing {
		questions = append(questions, "どのような種類のシステム（Web アプリ、モバイルアプリ、業務システムなど）を想定していますか？")
	}
	if v.CriticalQuestions.PersonalDataMissing {
		questions = append(questions, "個人情報を取り扱いますか？取り扱う場合はどのような情報か教えてください。")
	}
	if v.CriticalQuestions.UserScopeMissing {
		questions = append(questions, "利用者の範囲（社内のみ、一般公開など）と想定利用者数を教えてください。")
	}
	if len(questions) > 0 {
		b.WriteString("\n❓ 確認させてください\n")
		for _, q := range questions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	section(&b, "📝 不足している要件", v.MissingRequirements)
	section(&b, "⚡ 矛盾している点", v.Contradictions)
	section(&b, "🔍 曖昧な要件", v.UnclearRequirements)
	section(&b, "💡 推奨事項", v.Recommendations)
	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", heading)
	for _, s := range items {
		fmt.Fprintf(b, "- %s\n", s)
	}
}
