package messagepipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// StreamingService consumes messages and hands each one to a processor,
// acking or nacking it by the processor's result.
type StreamingService struct {
	numWorkers int
	consumer   MessageConsumer
	processor  MessageProcessor
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// StreamingServiceConfig holds configuration for a StreamingService.
type StreamingServiceConfig struct {
	NumWorkers int
}

// NewStreamingService creates a new StreamingService.
func NewStreamingService(
	cfg StreamingServiceConfig,
	consumer MessageConsumer,
	processor MessageProcessor,
	logger zerolog.Logger,
) (*StreamingService, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	return &StreamingService{
		numWorkers: cfg.NumWorkers,
		consumer:   consumer,
		processor:  processor,
		logger:     logger.With().Str("service", "StreamingService").Logger(),
	}, nil
}

// Start starts the consumer and then the workers.
func (s *StreamingService) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting streaming service...")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting processing workers...")
	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
	return nil
}

// Stop stops the consumer first, then waits for in-flight messages.
func (s *StreamingService) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping streaming service...")

	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	workerDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
		s.logger.Info().Msg("Streaming service stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for processing workers to finish.")
		return ctx.Err()
	}
}

func (s *StreamingService) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				s.logger.Debug().Int("worker_id", workerID).Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.process(ctx, msg)
		}
	}
}

func (s *StreamingService) process(ctx context.Context, msg Message) {
	if err := s.processor(ctx, &msg); err != nil {
		s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Processor failed to handle message, Nacking.")
		msg.Nack()
		return
	}
	s.logger.Debug().Str("msg_id", msg.ID).Msg("Message processed, Acking.")
	msg.Ack()
}
