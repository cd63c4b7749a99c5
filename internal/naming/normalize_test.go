package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"person", "person"},
		{"Person", "person"},
		{"blogPost", "blog-post"},
		{"BlogPost", "blog-post"},
		{"blog_post", "blog-post"},
		{"blog post", "blog-post"},
		{"blog-post", "blog-post"},
		{"user2Profile", "user2-profile"},
		{"HTML", "html"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"SuperVillain", "super_villain", "superVillain"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}
