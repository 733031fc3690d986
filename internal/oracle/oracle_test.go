package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/reqchat/internal/engine"
	"github.com/kalambet/reqchat/internal/requirements"
)

// mockChatter implements Chatter for testing.
type mockChatter struct {
	response string
	err      error
	delay    time.Duration

	messages []engine.Message
	schema   *engine.Schema
}

func (m *mockChatter) Chat(ctx context.Context, _ string, messages []engine.Message, schema *engine.Schema) (string, error) {
	m.messages = messages
	m.schema = schema
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func TestExtract_UserRegistration(t *testing.T) {
	mock := &mockChatter{
		response: `{"requirements":{"functional":[{"id":"f1","title":"ユーザー登録","description":"メールアドレスで登録できる","priority":"High"}]},"assistantResponse":"承知しました。"}`,
	}
	c := New(mock, "qwen2.5", time.Second)

	got, err := c.Extract(context.Background(), "ユーザー登録機能が欲しい", requirements.Document{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Requirements.Functional) != 1 || got.Requirements.Functional[0].Priority != requirements.PriorityHigh {
		t.Errorf("functional = %+v", got.Requirements.Functional)
	}
	if got.Requirements.Wishes == nil {
		t.Error("missing categories should be empty, not nil")
	}
	if got.AssistantResponse != "承知しました。" {
		t.Errorf("assistantResponse = %q", got.AssistantResponse)
	}
	if mock.schema == nil || mock.schema.Properties["requirements"] == nil {
		t.Error("extraction schema not sent")
	}
}

func TestExtract_IncludesCurrentStore(t *testing.T) {
	mock := &mockChatter{response: `{"requirements":{},"assistantResponse":"ok"}`}
	c := New(mock, "m", time.Second)
	current := requirements.Document{Constraints: []requirements.Item{{ID: "c1", Title: "予算は100万円"}}}

	if _, err := c.Extract(context.Background(), "追加です", current); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	user := mock.messages[len(mock.messages)-1].Content
	if !strings.Contains(user, "予算は100万円") || !strings.Contains(user, "追加です") {
		t.Errorf("prompt = %q", user)
	}
}

func TestExtract_CodeFence(t *testing.T) {
	mock := &mockChatter{response: "```json\n{\"requirements\":{\"wishes\":[{\"title\":\"ダークモード\",\"description\":\"\"}]},\"assistantResponse\":\"ok\"}\n```"}
	got, err := New(mock, "m", time.Second).Extract(context.Background(), "x", requirements.Document{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Requirements.Wishes) != 1 {
		t.Errorf("wishes = %+v", got.Requirements.Wishes)
	}
}

func TestExtract_Malformed(t *testing.T) {
	cases := []string{
		`not valid json {{{`,
		`plain prose`,
		`{"requirements":{"functional":[{"title":""}]},"assistantResponse":"x"}`,
		`{"requirements":{"functional":"oops"},"assistantResponse":"x"}`,
	}
	for _, resp := range cases {
		_, err := New(&mockChatter{response: resp}, "m", time.Second).Extract(context.Background(), "x", requirements.Document{})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("response %q: err = %v, want ErrMalformed", resp, err)
		}
	}
}

func TestExtract_Unavailable(t *testing.T) {
	_, err := New(&mockChatter{err: errors.New("connection refused")}, "m", time.Second).Extract(context.Background(), "x", requirements.Document{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestExtract_Timeout(t *testing.T) {
	mock := &mockChatter{response: `{}`, delay: time.Second}
	start := time.Now()
	_, err := New(mock, "m", 20*time.Millisecond).Extract(context.Background(), "x", requirements.Document{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout was not enforced")
	}
}

func TestExtract_EmptyMessage(t *testing.T) {
	mock := &mockChatter{}
	if _, err := New(mock, "m", time.Second).Extract(context.Background(), "  ", requirements.Document{}); err == nil {
		t.Fatal("expected error")
	}
	if mock.messages != nil {
		t.Error("oracle was called for an empty message")
	}
}

func TestGenerateArchitecture(t *testing.T) {
	mock := &mockChatter{response: `{"architecture_type":"spa_api","deployment_environment":"cloud","components":[{"id":"c1","name":"Web","type":"frontend","technologies":["React"]}]}`}
	arch, err := New(mock, "m", time.Second).GenerateArchitecture(context.Background(), requirements.Document{}, requirements.ArchitectureServerless)
	if err != nil {
		t.Fatalf("GenerateArchitecture: %v", err)
	}
	if arch.ArchitectureType != requirements.ArchitectureSPAAPI || len(arch.Components) != 1 {
		t.Errorf("arch = %+v", arch)
	}
	if arch.SecurityMeasures == nil {
		t.Error("nil list not normalised")
	}
	if !strings.Contains(mock.messages[1].Content, "serverless") {
		t.Error("preferred type missing from prompt")
	}
}

func TestGenerateArchitecture_AutoHasNoPreference(t *testing.T) {
	msgs := BuildArchitecturePrompt(requirements.Document{}, requirements.ArchitectureAuto)
	if strings.Contains(msgs[1].Content, "希望するアーキテクチャ") {
		t.Error("auto should not add a preference")
	}
}

func TestGenerateArchitecture_SchemaViolation(t *testing.T) {
	mock := &mockChatter{response: `{"architecture_type":"spa_api","deployment_environment":"moon"}`}
	if _, err := New(mock, "m", time.Second).GenerateArchitecture(context.Background(), requirements.Document{}, ""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestValidate(t *testing.T) {
	mock := &mockChatter{response: `{"overall_status":"warning","missing_requirements":["認証方式"],"completeness_score":45,"critical_questions":{"personal_data_missing":true}}`}
	v, err := New(mock, "m", time.Second).Validate(context.Background(), requirements.Document{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.CompletenessScore != 45 || v.Passed() || !v.CriticalQuestions.PersonalDataMissing {
		t.Errorf("validation = %+v", v)
	}

	mock.response = `{"overall_status":"fine","completeness_score":45}`
	if _, err := New(mock, "m", time.Second).Validate(context.Background(), requirements.Document{}); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
