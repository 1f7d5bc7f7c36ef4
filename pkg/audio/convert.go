package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Pipeline is the fixed format every [Source] must deliver: 16 kHz mono.
var Pipeline = Format{SampleRate: SampleRate, Channels: 1}

// FormatConverter converts raw PCM chunks to the pipeline format. It logs a
// warning on the first format mismatch and validates PCM data alignment.
// Create one per stream; not designed for shared use across goroutines.
type FormatConverter struct {
	Src            Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts pcm from the source format to 16 kHz mono. If the source
// already matches, pcm is returned unchanged (zero allocation). Chunks with
// an odd byte count are dropped (nil return).
// Conversion order: downmix first, then resample.
func (c *FormatConverter) Convert(pcm []byte) []byte {
	if len(pcm)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: odd byte count in PCM chunk, dropping",
				"bytes", len(pcm),
				"sampleRate", c.Src.SampleRate,
				"channels", c.Src.Channels,
			)
		})
		return nil
	}

	if c.Src == Pipeline {
		return pcm
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"fromRate", c.Src.SampleRate,
			"fromChannels", c.Src.Channels,
			"toRate", Pipeline.SampleRate,
		)
	})

	out := pcm
	if c.Src.Channels == 2 {
		out = StereoToMono(out)
	}
	if c.Src.SampleRate != Pipeline.SampleRate {
		out = ResampleMono16(out, c.Src.SampleRate, Pipeline.SampleRate)
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// PeakLevel returns the peak absolute amplitude of a 16-bit signed
// little-endian PCM chunk, normalised to [0, 1]. Returns 0 for chunks shorter
// than one sample.
func PeakLevel(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var peak int32
	for i := range n {
		sample := int32(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return float64(peak) / 32768.0
}
