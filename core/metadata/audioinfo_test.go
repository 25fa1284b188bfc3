package metadata

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFlacFixture writes a minimal FLAC file: the stream marker, one
// STREAMINFO block declaring the given sample rate and sample count,
// and frameBytes of opaque audio data.
func writeFlacFixture(t *testing.T, sampleRate int, totalSamples int64, frameBytes int) string {
	t.Helper()

	streamInfo := make([]byte, 34)
	streamInfo[10] = byte(sampleRate >> 12)
	streamInfo[11] = byte(sampleRate >> 4)
	streamInfo[12] = byte(sampleRate&0x0F) << 4
	streamInfo[13] = byte(totalSamples >> 32 & 0x0F)
	streamInfo[14] = byte(totalSamples >> 24)
	streamInfo[15] = byte(totalSamples >> 16)
	streamInfo[16] = byte(totalSamples >> 8)
	streamInfo[17] = byte(totalSamples)

	var buf bytes.Buffer
	buf.WriteString("fLaC")
	// Block header: last-block flag set, type 0 (STREAMINFO), length 34.
	buf.Write([]byte{0x80, 0x00, 0x00, 0x22})
	buf.Write(streamInfo)
	buf.Write(bytes.Repeat([]byte{0xAB}, frameBytes))

	path := filepath.Join(t.TempDir(), "fixture.flac")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestReadAudioInfoFlac(t *testing.T) {
	// 10 seconds at 44.1kHz.
	path := writeFlacFixture(t, 44100, 441000, 125_000)

	length, bitrate := readAudioInfo(path)
	assert.Equal(t, 10, length)

	info, err := os.Stat(path)
	require.NoError(t, err)
	expected := int(float64(info.Size()) * 8 / 10 / 1000)
	assert.Equal(t, expected, bitrate)
	assert.Greater(t, bitrate, 0)
}

func TestReadAudioInfoFlacRoundsHalfSecondUp(t *testing.T) {
	// 2.6 seconds rounds to 3.
	path := writeFlacFixture(t, 44100, 114660, 0)

	length, _ := readAudioInfo(path)
	assert.Equal(t, 3, length)
}

func TestReadAudioInfoUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	length, bitrate := readAudioInfo(path)
	assert.Zero(t, length)
	assert.Zero(t, bitrate)
}

func TestReadAudioInfoCorruptStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not an mpeg stream"), 0o644))

	length, bitrate := readAudioInfo(path)
	assert.Zero(t, length)
	assert.Zero(t, bitrate)
}

func TestExtractPopulatesStreamProperties(t *testing.T) {
	// No tag block at all: the title falls back to the filename and the
	// stream properties still come from STREAMINFO.
	path := writeFlacFixture(t, 44100, 441000, 125_000)

	e := NewTagExtractor()
	meta, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, 10, meta.Length)
	assert.Greater(t, meta.Bitrate, 0)
	assert.Equal(t, "fixture", meta.Title)
}
