// Package stream implements the playback primitive: resolving a song's audio
// stream, decoding it to PCM through ffmpeg and feeding Opus frames to a
// Discord voice connection. Each play delivers exactly one end-or-error
// completion signal through its subscription.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/time/rate"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Opener resolves video IDs to playable PCM streams. YouTube lookups are
// rate-limited so a burst of round restarts cannot hammer the resolver.
type Opener struct {
	client  *youtube.Client
	limiter *rate.Limiter
}

func NewOpener() *Opener {
	return &Opener{
		client:  &youtube.Client{},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 3),
	}
}

// Open resolves the song's audio URL and starts an ffmpeg decode from the
// given seek offset. The returned cleanup must be called when streaming ends.
func (o *Opener) Open(ctx context.Context, videoID string, seek time.Duration) (io.ReadCloser, func(), error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	video, err := o.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve video %s: %w", videoID, err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nil, errors.New("no audio formats available")
	}

	streamURL, err := o.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, nil, fmt.Errorf("get stream url: %w", err)
	}

	return ffmpegLink(streamURL, seek)
}

// ffmpegLink decodes a remote audio URL to raw s16le PCM on stdout, seeking
// before the input so ffmpeg skips without downloading the lead-in.
func ffmpegLink(url string, seek time.Duration) (io.ReadCloser, func(), error) {
	cmd := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-ss", fmt.Sprintf("%.3f", seek.Seconds()),
		"-i", url,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return reader, cleanup, nil
}
