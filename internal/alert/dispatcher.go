package alert

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/audio"
	"github.com/AAs6395/medremind/internal/metrics"
	"github.com/AAs6395/medremind/internal/reminder"
)

// Sound plays alert cues. PlayTone is the synthesized path, PlaySample the
// pre-encoded fallback.
type Sound interface {
	PlayTone(ctx context.Context, cue audio.Cue) error
	PlaySample(ctx context.Context) error
}

// Notifier shows a desktop notification, subject to permission state.
type Notifier interface {
	Show(ctx context.Context, title, body string) error
}

// Channel is an optional escalation sink for alert events.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Dispatcher renders alert events as side effects: an audible cue, a desktop
// notification, and any configured escalation channels. Dispatch returns
// immediately; delivery happens on its own goroutine and every failure is
// logged and swallowed. Nothing here may propagate an error back into the
// scheduler tick.
type Dispatcher struct {
	sound    Sound
	notifier Notifier
	channels []Channel
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil sound or notifier disables that
// sink.
func NewDispatcher(sound Sound, notifier Notifier, channels []Channel, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sound:    sound,
		notifier: notifier,
		channels: channels,
		logger:   logger,
	}
}

// Dispatch schedules delivery of one alert event and returns without
// waiting for it.
func (d *Dispatcher) Dispatch(ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Panic during alert delivery", zap.Any("recover", r))
			}
		}()
		d.deliver(ev)
	}()
}

// Drain waits up to timeout for in-flight deliveries to finish.
func (d *Dispatcher) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("Alert deliveries still in flight at shutdown")
	}
}

// CloseChannels releases escalation channels holding long-lived
// connections, like the discord session. Call after Drain.
func (d *Dispatcher) CloseChannels() {
	for _, ch := range d.channels {
		closer, ok := ch.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			d.logger.Warn("Failed to close channel",
				zap.String("channel", ch.Name()),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx := context.Background()

	d.playSound(ctx, ev)
	d.showNotification(ctx, ev)

	for _, ch := range d.channels {
		if err := ch.Send(ctx, ev); err != nil {
			metrics.RecordChannelSend(ch.Name(), false)
			d.logger.Warn("Channel send failed",
				zap.String("channel", ch.Name()),
				zap.String("reminder_id", ev.Reminder.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordChannelSend(ch.Name(), true)
	}
}

// playSound runs the tiered audio path: synthesized tone, then the
// pre-encoded sample exactly once, then silence.
func (d *Dispatcher) playSound(ctx context.Context, ev Event) {
	if d.sound == nil {
		return
	}

	cue := audio.CueChime
	if ev.Threshold == reminder.DueAlert {
		cue = audio.CueUrgent
	}

	err := d.sound.PlayTone(ctx, cue)
	if err == nil {
		return
	}
	metrics.RecordSoundFailure("tone")
	d.logger.Warn("Tone playback failed, trying fallback sample", zap.Error(err))

	if err := d.sound.PlaySample(ctx); err != nil {
		metrics.RecordSoundFailure("sample")
		d.logger.Warn("Fallback sample failed, alert is visual only", zap.Error(err))
	}
}

func (d *Dispatcher) showNotification(ctx context.Context, ev Event) {
	if d.notifier == nil {
		return
	}

	if err := d.notifier.Show(ctx, ev.Reminder.Title, ev.Message()); err != nil {
		d.logger.Warn("Desktop notification failed",
			zap.String("reminder_id", ev.Reminder.ID),
			zap.Error(err),
		)
	}
}
