package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	goflac "github.com/go-flac/go-flac"
	mp3 "github.com/llehouerou/go-mp3"
)

// readAudioInfo reads the stream duration from the container and
// derives the average bitrate from the file size. Zeros when the
// format carries no cheap duration or the stream is unreadable; the
// tag fields are indexed either way.
func readAudioInfo(path string) (lengthSeconds, bitrateKbps int) {
	var duration time.Duration
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		duration, err = mp3Duration(path)
	case ".flac":
		duration, err = flacDuration(path)
	default:
		return 0, 0
	}
	if err != nil || duration <= 0 {
		return 0, 0
	}

	lengthSeconds = int((duration + time.Second/2) / time.Second)
	if info, statErr := os.Stat(path); statErr == nil {
		bitrateKbps = int(float64(info.Size()) * 8 / duration.Seconds() / 1000)
	}
	return lengthSeconds, bitrateKbps
}

func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, err
	}
	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		return 0, errors.New("mp3: invalid sample rate")
	}
	sampleCount := decoder.SampleCount()
	if sampleCount <= 0 {
		return 0, errors.New("mp3: no samples")
	}
	return time.Duration(float64(sampleCount) / float64(sampleRate) * float64(time.Second)), nil
}

// flacDuration reads sample rate and total samples out of the
// STREAMINFO metadata block; no audio frame is decoded.
func flacDuration(path string) (time.Duration, error) {
	flacFile, err := goflac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	for _, meta := range flacFile.Meta {
		if meta.Type != goflac.StreamInfo || len(meta.Data) < 18 {
			continue
		}
		data := meta.Data
		// Sample rate: 20 bits starting at byte 10. Total samples:
		// 36 bits, the low nibble of byte 13 plus bytes 14-17.
		sampleRate := int(data[10])<<12 | int(data[11])<<4 | int(data[12])>>4
		totalSamples := int64(data[13]&0x0F)<<32 | int64(data[14])<<24 |
			int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])
		if sampleRate <= 0 || totalSamples <= 0 {
			return 0, errors.New("flac: empty stream info")
		}
		return time.Duration(float64(totalSamples) / float64(sampleRate) * float64(time.Second)), nil
	}
	return 0, errors.New("flac: no stream info block")
}
