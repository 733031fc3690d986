package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name, filename, contentType string
		data                        string
		want                        Kind
	}{
		{"pdf content type", "spec", "application/pdf", "", KindPDF},
		{"html content type with charset", "page", "text/html; charset=utf-8", "", KindHTML},
		{"markdown content type", "notes", "text/markdown", "", KindText},
		{"pdf extension", "要件.PDF", "application/octet-stream", "", KindPDF},
		{"htm extension", "index.htm", "", "", KindHTML},
		{"md extension", "README.md", "", "", KindText},
		{"pdf magic", "upload.bin", "", "%PDF-1.7\n", KindPDF},
		{"utf8 fallback", "memo", "", "ログイン機能", KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectKind(tt.filename, tt.contentType, []byte(tt.data))
			if err != nil {
				t.Fatalf("DetectKind: %v", err)
			}
			if got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectKind_Binary(t *testing.T) {
	_, err := DetectKind("blob", "", []byte{0xff, 0xfe, 0x00, 0x81})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestExtractText_HTML(t *testing.T) {
	page := `<html><head><title>ignored</title><style>p{color:red}</style></head>
<body><h1>会員管理</h1><script>var x = 1;</script>
<p>ユーザー登録   機能</p><ul><li>ログイン</li><li>パスワード再設定</li></ul></body></html>`

	got, err := ExtractText("spec.html", "text/html", []byte(page))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := "会員管理\nユーザー登録 機能\nログイン\nパスワード再設定"
	if got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	for _, bad := range []string{"var x", "color:red", "ignored"} {
		if strings.Contains(got, bad) {
			t.Errorf("text contains %q", bad)
		}
	}
}

func TestExtractText_Plain(t *testing.T) {
	got, err := ExtractText("notes.txt", "", []byte("  一行目  \r\n\r\n\r\n二行目\n"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "一行目\n二行目" {
		t.Errorf("text = %q", got)
	}
}

func TestExtractText_InvalidUTF8Text(t *testing.T) {
	_, err := ExtractText("notes.txt", "text/plain", []byte{0xff, 0xfe})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestExtractText_BrokenPDF(t *testing.T) {
	_, err := ExtractText("spec.pdf", "application/pdf", []byte("%PDF-1.4\nnot really a pdf"))
	if err == nil {
		t.Fatal("expected error for a truncated PDF")
	}
}
