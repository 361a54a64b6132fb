package server

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
)

// StartSchedule runs a full resurrection on the standard five-field cron
// spec until ctx is cancelled. A tick that lands while a run is in progress
// is skipped.
func (s *Server) StartSchedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() { s.runScheduled(ctx) })
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	log.Printf("Scheduled resurrections: %s", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

func (s *Server) runScheduled(ctx context.Context) {
	if !s.runMu.TryLock() {
		log.Println("Warning: skipping scheduled resurrection, previous run still in progress")
		return
	}
	defer s.runMu.Unlock()

	id, res, err := s.resurrect(ctx)
	switch {
	case err != nil:
		log.Printf("Warning: scheduled resurrection failed: %v", err)
	case res.Status == pipeline.StatusEmpty:
		log.Println("Scheduled resurrection found no projects")
	default:
		log.Printf("Scheduled resurrection %s: %d projects", id, len(res.Portfolio.Projects))
	}
}
