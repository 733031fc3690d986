package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/reqchat/internal/engine"
	"github.com/kalambet/reqchat/internal/requirements"
)

const extractionSystemPrompt = `あなたはシステム開発の要件定義を支援するアシスタントです。ユーザーの発言から要件を抽出し、指定されたスキーマに従う単一の JSON オブジェクトのみを出力してください。説明文やマークダウンは含めないでください。

カテゴリ:
- functional: 機能要件（システムが何をするか）
- nonFunctional: 非機能要件（性能、可用性、セキュリティなど）
- constraints: 制約（予算、期限、技術的な制限）
- wishes: 要望（あれば嬉しいもの）
- designGuidelines: デザイン・UI の方針

ルール:
- 今回のユーザー発言から新たに読み取れる要件のみを返すこと。既存の要件は繰り返さない。
- 各要件には簡潔な title と具体的な description を付け、priority は high / medium / low のいずれかにする。
- 該当する要件がないカテゴリは空配列にする。
- assistantResponse には、抽出した内容の確認と、要件を具体化するための次の質問を日本語で書く。`

const architectureSystemPrompt = `あなたは経験豊富なソフトウェアアーキテクトです。与えられた要件からシステムアーキテクチャを設計し、指定されたスキーマに従う単一の JSON オブジェクトのみを出力してください。

architecture_type は monolithic / microservices / serverless / spa_api / mobile_backend / event_driven のいずれかを推奨します。
deployment_environment は cloud / on_premise / hybrid のいずれかです。
components の type は frontend / backend / database / infrastructure / security / integration のいずれかです。
各コンポーネントには採用技術 (technologies) と選定理由 (justification) を日本語で記載してください。`

const validationSystemPrompt = `あなたは要件定義のレビュアーです。与えられた要件一式を評価し、指定されたスキーマに従う単一の JSON オブジェクトのみを出力してください。

- overall_status: good / warning / critical
- missing_requirements: 不足している要件
- contradictions: 矛盾している要件
- unclear_requirements: 曖昧な要件
- recommendations: 改善提案
- completeness_score: 0 から 100 の整数
- critical_questions: システム種別が不明なら system_type_missing、個人情報の扱いが不明なら personal_data_missing、利用者の範囲が不明なら user_scope_missing を true にする

各項目は日本語で簡潔に書いてください。`

func docJSON(d requirements.Document) string {
	b, _ := json.MarshalIndent(d.Clone(), "", "  ")
	return string(b)
}

// BuildExtractionPrompt constructs the chat messages for requirement extraction.
func BuildExtractionPrompt(message string, current requirements.Document) []engine.Message {
	var sb strings.Builder
	if !current.IsEmpty() {
		fmt.Fprintf(&sb, "[既存の要件]\n%s\n\n", docJSON(current))
	}
	fmt.Fprintf(&sb, "[ユーザーの発言]\n%s", message)

	return []engine.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// BuildArchitecturePrompt constructs the chat messages for architecture design.
// An empty or "auto" preference leaves the choice to the model.
func BuildArchitecturePrompt(doc requirements.Document, preferred string) []engine.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[要件]\n%s", docJSON(doc))
	if preferred != "" && preferred != requirements.ArchitectureAuto {
		fmt.Fprintf(&sb, "\n\n[希望するアーキテクチャ]\n%s を採用してください。", preferred)
	}
	return []engine.Message{
		{Role: "system", Content: architectureSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// BuildValidationPrompt constructs the chat messages for validation.
func BuildValidationPrompt(doc requirements.Document) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: validationSystemPrompt},
		{Role: "user", Content: "[要件]\n" + docJSON(doc)},
	}
}
