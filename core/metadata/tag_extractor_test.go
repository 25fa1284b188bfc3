package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAudioPath(t *testing.T) {
	assert.True(t, IsAudioPath("/music/queen/bohemian rhapsody.mp3"))
	assert.True(t, IsAudioPath("/music/a.FLAC"))
	assert.False(t, IsAudioPath("/music/cover.jpg"))
	assert.False(t, IsAudioPath("/music/notes.txt"))
	assert.False(t, IsAudioPath("/music/noext"))
}

func TestMimetypeForPath(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MimetypeForPath("x.mp3"))
	assert.Equal(t, "audio/flac", MimetypeForPath("x.flac"))
	assert.Equal(t, "", MimetypeForPath("x.pdf"))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "Bohemian Rhapsody", TitleFromPath("/music/Queen/Bohemian Rhapsody.mp3"))
	assert.Equal(t, "01 - Intro", TitleFromPath("01 - Intro.flac"))
}

func TestExtractMissingFile(t *testing.T) {
	e := NewTagExtractor()
	_, err := e.Extract("/nonexistent/file.mp3")
	assert.ErrorIs(t, err, ErrExtraction)
}
