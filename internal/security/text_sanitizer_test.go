package security

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
		{
			name:  "プレーンテキストはそのまま",
			input: "Markets rallied on Friday",
			want:  "Markets rallied on Friday",
		},
		{
			name:  "Guardianのstrongタグを除去する",
			input: "<strong>Live</strong> Markets rallied on Friday",
			want:  "Live Markets rallied on Friday",
		},
		{
			name:  "段落と改行を空白1つにまとめる",
			input: "<p>first</p>\n\n<p>second</p>",
			want:  "first second",
		},
		{
			name:  "実体参照を復元する",
			input: "Tom &amp; Jerry&#39;s day",
			want:  "Tom & Jerry's day",
		},
		{
			name:  "scriptタグは中身ごと除去する",
			input: `safe<script>alert("xss")</script>`,
			want:  "safe",
		},
		{
			name:  "実体参照で書かれたscriptタグは復元後に除去する",
			input: "Hi &lt;script&gt;alert(1)&lt;/script&gt; <b>x</b>",
			want:  "Hi x",
		},
		{
			name:  "実体参照で書かれた装飾タグはテキストのみ残す",
			input: "&lt;b&gt;Breaking&lt;/b&gt; news",
			want:  "Breaking news",
		},
		{
			name:  "不等号はタグとして扱わない",
			input: "a &lt; b",
			want:  "a < b",
		},
		{
			name:  "aタグはテキストのみ残す",
			input: `Read <a href="https://example.com">more</a>`,
			want:  "Read more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_NoTagsRemain は出力にタグが残らないことを検証する。
func TestSanitizeText_NoTagsRemain(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		`<img src="x" onerror="alert(1)">caption`,
		`<iframe src="https://evil.example.com"></iframe>body`,
		`<div><span style="color:red">styled</span></div>`,
		`&lt;img src=x onerror=alert(1)&gt;caption`,
		`&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;double`,
		`&amp;amp;amp;lt;b&amp;amp;amp;gt;deep`,
	}

	for _, input := range inputs {
		got := sanitizer.SanitizeText(input)
		if strings.Contains(got, "<") || strings.Contains(got, ">") {
			t.Errorf("SanitizeText(%q) = %q, タグが残ってはならない", input, got)
		}
	}
}

// TestSanitizeText_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := "<em>Breaking</em>: storm &amp; floods"

	first := sanitizer.SanitizeText(input)
	second := sanitizer.SanitizeText(first)
	if first != second {
		t.Errorf("冪等でない: first=%q second=%q", first, second)
	}
}
