package news

import (
	"testing"
	"time"
)

func TestUsable(t *testing.T) {
	longSummary := "A summary that is comfortably longer than thirty characters."

	tests := []struct {
		name    string
		article Article
		want    bool
	}{
		{
			name:    "qualified article",
			article: Article{Title: "A headline longer than ten", Summary: longSummary, Source: "ESPN"},
			want:    true,
		},
		{
			name:    "title too short",
			article: Article{Title: "Too short", Summary: longSummary, Source: "ESPN"},
			want:    false,
		},
		{
			name:    "summary too short",
			article: Article{Title: "A headline longer than ten", Summary: "tiny", Source: "ESPN"},
			want:    false,
		},
		{
			name:    "missing source",
			article: Article{Title: "A headline longer than ten", Summary: longSummary},
			want:    false,
		},
		{
			name:    "whitespace padding doesn't qualify a title",
			article: Article{Title: "short     ", Summary: longSummary, Source: "ESPN"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.article.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishedTime(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2026-08-20T10:30:00Z", true},
		{"2026-08-20T10:30:00+00:00", true},
		{"2026-08-20T10:30:00", true},
		{"2026-08-20 10:30:00", true},
		{"Wed, 20 Aug 2026 10:30:00 +0000", true},
		{"", false},
		{"yesterday-ish", false},
		{"2026-13-45", false},
	}

	for _, tt := range tests {
		_, ok := Article{PublishedAt: tt.in}.PublishedTime()
		if ok != tt.wantOK {
			t.Errorf("PublishedTime(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}

func TestPublishedTimeValue(t *testing.T) {
	a := Article{PublishedAt: "2026-08-20T10:30:00Z"}
	got, ok := a.PublishedTime()
	if !ok {
		t.Fatal("expected parsable timestamp")
	}
	want := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("PublishedTime() = %v, want %v", got, want)
	}
}
