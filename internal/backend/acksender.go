package backend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AAs6395/medremind/internal/metrics"
)

// Acker performs one acknowledgement call against the backend.
type Acker interface {
	MarkNotified(ctx context.Context, id string) error
}

// AckSender delivers notify acknowledgements off the scheduler's tick
// goroutine. Submit never blocks; when the queue is full the ack is
// dropped and the next cache refresh reconciles the notified flag.
type AckSender struct {
	acker   Acker
	queue   chan string
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
	done    chan struct{}
}

func NewAckSender(acker Acker, logger *zap.Logger) *AckSender {
	return &AckSender{
		acker:   acker,
		queue:   make(chan string, 64),
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		timeout: 10 * time.Second,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// WithLimiter replaces the outbound rate limiter. Call before Start.
func (s *AckSender) WithLimiter(l *rate.Limiter) *AckSender {
	s.limiter = l
	return s
}

// Start launches the delivery worker.
func (s *AckSender) Start() {
	s.wg.Add(1)
	go s.run()
}

// Submit queues an acknowledgement without blocking.
func (s *AckSender) Submit(id string) {
	select {
	case s.queue <- id:
	default:
		metrics.RecordAck("dropped")
		s.logger.Warn("Ack queue full, dropping acknowledgement", zap.String("reminder_id", id))
	}
}

// Stop flushes queued acknowledgements and stops the worker.
func (s *AckSender) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *AckSender) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			for {
				select {
				case id := <-s.queue:
					s.send(id)
				default:
					return
				}
			}
		case id := <-s.queue:
			s.send(id)
		}
	}
}

func (s *AckSender) send(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		metrics.RecordAck("dropped")
		return
	}

	if err := s.acker.MarkNotified(ctx, id); err != nil {
		metrics.RecordAck("failed")
		s.logger.Warn("Failed to acknowledge reminder",
			zap.String("reminder_id", id),
			zap.Error(err),
		)
		return
	}

	metrics.RecordAck("ok")
	s.logger.Debug("Reminder acknowledged", zap.String("reminder_id", id))
}
