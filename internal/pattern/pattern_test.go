package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileErrors(t *testing.T) {
	testCases := []struct {
		name  string
		route string
	}{
		{"relative", "blog/:page?"},
		{"bad name", "/blog/:1page"},
		{"empty name", "/blog/:"},
		{"duplicate", "/a/:x/:x"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.route)
			assert.Error(t, err)
		})
	}
}

func TestMatch(t *testing.T) {
	testCases := []struct {
		name     string
		route    string
		path     string
		expected Params
		ok       bool
	}{
		{"optional absent", "/blog/:page?", "/blog", Params{}, true},
		{"optional present", "/blog/:page?", "/blog/2", Params{"page": "2"}, true},
		{"trailing slash", "/blog/:page?", "/blog/2/", Params{"page": "2"}, true},
		{"too long", "/blog/:page?", "/blog/2/3", nil, false},
		{"literal mismatch", "/blog/:page?", "/news/2", nil, false},
		{"required and optional", "/tag/:tag/:page?", "/tag/go/3", Params{"tag": "go", "page": "3"}, true},
		{"required missing", "/tag/:tag/:page?", "/tag", nil, false},
		{"decoded", "/tag/:tag", "/tag/hello%20world", Params{"tag": "hello world"}, true},
		{"bad escape", "/tag/:tag", "/tag/%zz", nil, false},
		{"empty segment", "/tag/:tag", "/tag//", nil, false},
		{"root", "/", "/", Params{}, true},
		{"optional in middle", "/a/:x?/b", "/a/b", Params{}, true},
		{"optional in middle present", "/a/:x?/b", "/a/q/b", Params{"x": "q"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := MustCompile(tc.route)
			params, ok := p.Match(tc.path)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, params)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	p := MustCompile("/tag/:tag/:page?")

	got, err := p.Build(Params{"tag": "go"})
	require.NoError(t, err)
	assert.Equal(t, "/tag/go", got)

	got, err = p.Build(Params{"tag": "go", "page": "2"})
	require.NoError(t, err)
	assert.Equal(t, "/tag/go/2", got)

	got, err = p.Build(Params{"tag": "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "/tag/hello%20world", got)

	_, err = p.Build(Params{"page": "2"})
	assert.Error(t, err)

	_, err = p.Build(Params{"tag": "a/b"})
	assert.Error(t, err)

	root, err := MustCompile("/").Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "/", root)
}

func TestIntrospection(t *testing.T) {
	p := MustCompile("/tag/:tag/:page?")
	assert.Equal(t, []string{"tag", "page"}, p.Names())
	assert.True(t, p.HasParam("page"))
	assert.True(t, p.IsOptional("page"))
	assert.False(t, p.IsOptional("tag"))
	assert.False(t, p.HasParam("slug"))
	assert.Equal(t, "/tag/:tag/:page?", p.String())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/posts/:page?", Join("/blog", "/posts/:page?"))
	assert.Equal(t, "/blog/:page?", Join("/blog", ":page?"))
	assert.Equal(t, "/:page?", Join("/", ":page?"))
	assert.Equal(t, "/blog/tag/:tag/", Join("/blog", "tag/:tag/"))
}
