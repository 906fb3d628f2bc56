package watch

import "testing"

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{
			name:     "simple wildcard",
			patterns: []string{"*.tmp"},
			path:     "/work/core/notes.tmp",
			want:     true,
		},
		{
			name:     "simple wildcard no match",
			patterns: []string{"*.tmp"},
			path:     "/work/core/notes.txt",
			want:     false,
		},
		{
			name:     "double wildcard",
			patterns: []string{"docs/**"},
			path:     "/work/core/docs/guide/index.md",
			want:     true,
		},
		{
			name:     "segment boundary",
			patterns: []string{"docs/**"},
			path:     "/work/core/mydocs/index.md",
			want:     false,
		},
		{
			name:     "plain name covers directory",
			patterns: []string{"generated"},
			path:     "/work/core/generated",
			want:     true,
		},
		{
			name:     "plain name covers contents",
			patterns: []string{"generated/"},
			path:     "/work/core/generated/a/b.src",
			want:     true,
		},
		{
			name:     "question mark",
			patterns: []string{"swap?.dat"},
			path:     "/work/swap1.dat",
			want:     true,
		},
		{
			name:     "question mark no match",
			patterns: []string{"swap?.dat"},
			path:     "/work/swap12.dat",
			want:     false,
		},
		{
			name:     "character class",
			patterns: []string{"log[0-9].txt"},
			path:     "/work/log5.txt",
			want:     true,
		},
		{
			name:     "negated character class",
			patterns: []string{"log[!0-9].txt"},
			path:     "/work/log5.txt",
			want:     false,
		},
		{
			name:     "absolute pattern",
			patterns: []string{"/work/core/*.bak"},
			path:     "/work/core/a.bak",
			want:     true,
		},
		{
			name:     "absolute pattern elsewhere",
			patterns: []string{"/work/core/*.bak"},
			path:     "/other/core/a.bak",
			want:     false,
		},
		{
			name:     "dots are literal",
			patterns: []string{"*.o"},
			path:     "/work/main_o",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newMatcher(tt.patterns)
			if err != nil {
				t.Fatalf("newMatcher() error = %v", err)
			}
			if got := m.match(tt.path); got != tt.want {
				t.Errorf("match(%q) = %v, want %v (patterns %v)", tt.path, got, tt.want, m.patterns)
			}
		})
	}
}

func TestMatcher_Empty(t *testing.T) {
	m, err := newMatcher(nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.match("/anything") {
		t.Error("empty matcher should not match")
	}

	var nilMatcher *matcher
	if nilMatcher.match("/anything") {
		t.Error("nil matcher should not match")
	}
}
