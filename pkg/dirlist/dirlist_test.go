package dirlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nginxListing = `<html>
<head><title>Index of /media/42/</title></head>
<body>
<h1>Index of /media/42/</h1><hr><pre><a href="../">../</a>
<a href="10.jpg">10.jpg</a>                                             01-May-2024 10:00     182311
<a href="2.JPG">2.JPG</a>                                              01-May-2024 10:00     172002
<a href="1.webp">1.webp</a>                                             01-May-2024 10:00     99102
<a href="plan.pdf">plan.pdf</a>                                           01-May-2024 10:00     55000
<a href="thumbs/">thumbs/</a>                                            01-May-2024 10:00         -
<a href="?C=N;O=D">Name</a>
<a href="1.webp">1.webp</a>
</pre><hr></body>
</html>`

func TestParse_Nginx(t *testing.T) {
	urls, err := Parse("https://media.example.uz/media/42/", []byte(nginxListing))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://media.example.uz/media/42/1.webp",
		"https://media.example.uz/media/42/2.JPG",
		"https://media.example.uz/media/42/10.jpg",
	}, urls)
}

func TestParse_DirWithoutTrailingSlash(t *testing.T) {
	body := `<a href="a.png">a</a><a href="/other/b.jpeg">b</a><a href="https://cdn.example.uz/c.avif">c</a>`
	urls, err := Parse("https://media.example.uz/media/7", []byte(body))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"https://media.example.uz/media/7/a.png",
		"https://media.example.uz/other/b.jpeg",
		"https://cdn.example.uz/c.avif",
	}, urls)
}

func TestParse_Empty(t *testing.T) {
	urls, err := Parse("https://media.example.uz/x/", []byte(`<html><body>nothing</body></html>`))
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestParse_BadBase(t *testing.T) {
	_, err := Parse("://bad", []byte(""))
	assert.Error(t, err)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, naturalLess("2.jpg", "10.jpg"))
	assert.True(t, naturalLess("img-002.jpg", "img-10.jpg"))
	assert.False(t, naturalLess("b.jpg", "a.jpg"))
	assert.True(t, naturalLess("a", "ab"))
}
