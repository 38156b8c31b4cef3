package audio

import (
	"bytes"
	"context"
	_ "embed"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
)

//go:embed assets/fallback.wav
var fallbackWAV []byte

var (
	otoCtx  *oto.Context
	otoErr  error
	otoOnce sync.Once
)

// playbackContext opens the shared oto context on first use. oto allows
// only one context per process and offers no teardown, so it lives for
// the lifetime of the agent.
func playbackContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = apperrors.Wrap(err, apperrors.ErrAudioUnavailable.Code, "failed to open audio device")
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	return otoCtx, nil
}

// Engine plays alert cues on the local audio device.
type Engine struct {
	logger *zap.Logger

	sampleOnce sync.Once
	samplePath string
	sampleErr  error
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// PlayTone synthesizes a cue and plays it, blocking until the cue
// finishes or ctx is cancelled.
func (e *Engine) PlayTone(ctx context.Context, cue Cue) error {
	octx, err := playbackContext()
	if err != nil {
		return err
	}
	e.logger.Debug("Playing tone", zap.String("cue", cue.String()))
	return playPCM(ctx, octx, Render(cue))
}

// PlaySample plays the bundled fallback sample. When the audio device
// cannot be opened directly it falls back to a system player binary.
func (e *Engine) PlaySample(ctx context.Context) error {
	info, pcm, err := decodeWAV(fallbackWAV)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "bundled sample is unreadable")
	}

	octx, cerr := playbackContext()
	if cerr != nil {
		return e.playSampleExec(ctx)
	}
	if info.SampleRate != SampleRate || info.Channels != 1 || info.BitDepth != 16 {
		return apperrors.New(apperrors.ErrPlaybackFailed.Code, "bundled sample format mismatch")
	}
	e.logger.Debug("Playing fallback sample")
	return playPCM(ctx, octx, pcm)
}

func playPCM(ctx context.Context, octx *oto.Context, pcm []byte) error {
	player := octx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Close()
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := player.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "failed to close audio player")
	}
	return nil
}

// playSampleExec stages the embedded sample to disk and hands it to the
// first available system player.
func (e *Engine) playSampleExec(ctx context.Context) error {
	path, err := e.sampleFile()
	if err != nil {
		return err
	}

	candidates := [][]string{{"afplay"}, {"paplay"}, {"aplay", "-q"}}
	for _, candidate := range candidates {
		bin, lookErr := exec.LookPath(candidate[0])
		if lookErr != nil {
			continue
		}
		args := append(candidate[1:], path)
		if err := exec.CommandContext(ctx, bin, args...).Run(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "system player failed")
		}
		e.logger.Debug("Played fallback sample", zap.String("player", candidate[0]))
		return nil
	}
	return apperrors.New(apperrors.ErrPlaybackFailed.Code, "no usable audio output found")
}

func (e *Engine) sampleFile() (string, error) {
	e.sampleOnce.Do(func() {
		f, err := os.CreateTemp("", "medremind-*.wav")
		if err != nil {
			e.sampleErr = apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "failed to stage fallback sample")
			return
		}
		if _, err := f.Write(fallbackWAV); err != nil {
			f.Close()
			e.sampleErr = apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "failed to stage fallback sample")
			return
		}
		if err := f.Close(); err != nil {
			e.sampleErr = apperrors.Wrap(err, apperrors.ErrPlaybackFailed.Code, "failed to stage fallback sample")
			return
		}
		e.samplePath = f.Name()
	})
	return e.samplePath, e.sampleErr
}
