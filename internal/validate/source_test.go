package validate

import "testing"

func TestSourceClassifier(t *testing.T) {
	c := NewSourceClassifier()

	cases := []struct {
		url  string
		kind SourceKind
	}{
		{"https://github.com/video-dev/hls.js", KindRepository},
		{"https://www.gitlab.com/group/project", KindRepository},
		{"https://youtube.com/watch?v=abc", KindVideo},
		{"https://youtu.be/abc", KindVideo},
		{"https://docs.ffmpeg.org/codecs", KindDocumentation},
		{"https://example.com/docs/intro", KindDocumentation},
		{"https://medium.com/@someone/post", KindArticle},
		{"https://blog.example.com/post", KindArticle},
		{"https://example.com/about", KindOther},
		{"://bad", KindOther},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.url); got != tc.kind {
			t.Errorf("Classify(%q) = %q, want %q", tc.url, got, tc.kind)
		}
	}
}

func TestIsRepository(t *testing.T) {
	c := NewSourceClassifier()
	if !c.IsRepository("https://github.com/owner/repo") {
		t.Error("expected GitHub URL to classify as repository")
	}
	if c.IsRepository("https://example.com/owner/repo") {
		t.Error("expected non-forge URL to not classify as repository")
	}
}
