package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/config"
	"github.com/SteelMorgan/log-tailer/internal/domain"
	"github.com/SteelMorgan/log-tailer/internal/filetail"
	"github.com/SteelMorgan/log-tailer/internal/writer"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Tailer is the part of filetail.Tailer used by the poller
type Tailer interface {
	Tail(ctx context.Context, path string, patterns []string, timeLimit time.Duration) (filetail.Result, error)
}

// PollerService polls every configured target and ships matched lines to the writer
type PollerService struct {
	cfg    *config.Config
	tailer Tailer
	writer writer.LineWriter
	runID  string

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPollerService creates a new poller service
func NewPollerService(cfg *config.Config, tailer Tailer, w writer.LineWriter) (*PollerService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if tailer == nil {
		return nil, fmt.Errorf("tailer is required")
	}
	if w == nil {
		return nil, fmt.Errorf("writer is required")
	}

	return &PollerService{
		cfg:      cfg,
		tailer:   tailer,
		writer:   w,
		runID:    uuid.NewString(),
		stopChan: make(chan struct{}),
	}, nil
}

// RunID identifies this poller process in shipped rows
func (s *PollerService) RunID() string {
	return s.runID
}

// Start runs one polling loop per target and blocks until ctx is cancelled
// or Stop is called
func (s *PollerService) Start(ctx context.Context) error {
	log.Info().
		Str("run_id", s.runID).
		Int("targets", len(s.cfg.Targets)).
		Dur("interval", s.cfg.PollInterval).
		Msg("Poller service starting...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, target := range s.cfg.Targets {
		s.wg.Add(1)
		go func(target config.Target) {
			defer s.wg.Done()
			s.pollTarget(ctx, target)
		}(target)
	}

	if s.cfg.BatchFlushTimeout > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.flushLoop(ctx)
		}()
	}

	select {
	case <-ctx.Done():
	case <-s.stopChan:
		cancel()
	}
	s.wg.Wait()

	return ctx.Err()
}

// Stop stops the polling loops and closes the writer, flushing pending lines
func (s *PollerService) Stop() error {
	log.Info().Msg("Poller service stopping...")

	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	return s.writer.Close()
}

// pollTarget polls one target until ctx is done. Polls of one file never overlap.
func (s *PollerService) pollTarget(ctx context.Context, target config.Target) {
	log.Info().
		Str("target", target.Name).
		Str("path", target.Path).
		Strs("patterns", target.Patterns).
		Dur("time_limit", target.TimeLimit).
		Msg("Tailing target")

	s.poll(ctx, target)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.poll(ctx, target)
		case <-ctx.Done():
			log.Debug().Str("target", target.Name).Msg("Target poller stopped")
			return
		}
	}
}

// poll performs one tail call and hands its lines and metrics to the writer
func (s *PollerService) poll(ctx context.Context, target config.Target) {
	startTime := time.Now()

	res, err := s.tailer.Tail(ctx, target.Path, target.Patterns, target.TimeLimit)
	if ctx.Err() != nil {
		if !res.Committed() {
			return
		}
		// the offset already moved past these lines, ship them on the way out
		ctx = context.WithoutCancel(ctx)
	}

	metrics := &domain.TailMetrics{
		Timestamp:    startTime,
		RunID:        s.runID,
		Target:       target.Name,
		FilePath:     target.Path,
		Status:       res.Status.String(),
		LinesMatched: uint32(len(res.Lines)),
		BytesRead:    res.End - res.Start,
		DurationMs:   uint64(time.Since(startTime).Milliseconds()),
	}

	switch {
	case err != nil:
		metrics.ErrorMessage = err.Error()
		log.Warn().
			Err(err).
			Str("target", target.Name).
			Str("path", target.Path).
			Msg("Tail failed, retrying on next poll")
	case res.Status == filetail.StatusDeadlineExceeded:
		log.Warn().
			Str("target", target.Name).
			Str("path", target.Path).
			Int("partial_lines", len(res.Lines)).
			Dur("time_limit", target.TimeLimit).
			Msg("Tail hit its time limit, offset not advanced")
	}

	// partial lines of a timed out read come back with the next committed read
	if res.Committed() && len(res.Lines) > 0 {
		batch := &domain.LineBatch{
			Timestamp:   startTime,
			RunID:       s.runID,
			Hostname:    s.cfg.Hostname,
			Target:      target.Name,
			FilePath:    target.Path,
			FileKey:     res.Key,
			StartOffset: res.Start,
			EndOffset:   res.End,
			Lines:       res.Lines,
		}
		if err := s.writer.WriteBatch(ctx, batch); err != nil {
			log.Error().
				Err(err).
				Str("target", target.Name).
				Int("lines", len(res.Lines)).
				Msg("Failed to write lines")
		} else {
			log.Info().
				Str("target", target.Name).
				Int("lines", len(res.Lines)).
				Str("read", humanize.Bytes(res.End-res.Start)).
				Msg("Lines matched")
		}
	}

	if err := s.writer.WriteTailMetrics(ctx, metrics); err != nil {
		log.Warn().Err(err).Str("target", target.Name).Msg("Failed to write tail metrics")
	}
}

// flushLoop flushes writer batches that would otherwise wait for the next match
func (s *PollerService) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BatchFlushTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.writer.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to flush writer")
			}
		case <-ctx.Done():
			return
		}
	}
}
