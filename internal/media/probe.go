package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"
)

// Info summarizes what ffprobe reported about a media file. Width, Height,
// and Codec come from the first video stream; Duration, Size, and Format come
// from the container.
type Info struct {
	Duration time.Duration
	Width    int
	Height   int
	Codec    string
	Size     int64
	Format   string
}

// HasVideoStream reports whether the probe found a decodable video stream.
func (i Info) HasVideoStream() bool {
	return i.Codec != ""
}

// probeOutput mirrors ffprobe's -print_format json layout. Numeric fields
// arrive as strings at the format level.
type probeOutput struct {
	Format  probeFormat  `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Prober runs ffprobe against local files.
type Prober struct {
	timeout time.Duration
	run     commandRunner
}

// NewProber constructs a Prober with the given per-invocation timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{timeout: timeout, run: runCommand}
}

// Probe inspects the file at path. Failures are non-fatal to callers that
// merely want metadata; they receive a zero Info plus the error and decide
// whether to proceed or re-raise.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	out, err := p.run(ctx, p.timeout, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	if err != nil {
		log.Printf("probe failed for %s: %v", path, err)
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(data []byte) (Info, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Info{}, fmt.Errorf("parse probe output: %w", err)
	}
	info := Info{Format: raw.Format.FormatName}
	if raw.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
			info.Duration = time.Duration(seconds * float64(time.Second))
		}
	}
	if raw.Format.Size != "" {
		if size, err := strconv.ParseInt(raw.Format.Size, 10, 64); err == nil {
			info.Size = size
		}
	}
	for _, stream := range raw.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			break
		}
	}
	return info, nil
}
