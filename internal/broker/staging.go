package broker

import (
	"fmt"
	"sync"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

// staging holds the per-run create/update payloads the pseudo-RPC handlers
// address by index. One staging area exists per broker, one broker per run;
// it is never shared across concurrent runs.
type staging struct {
	mu    sync.RWMutex
	runID string
	run   cms.StagedRun
}

func newStaging(runID string) *staging {
	return &staging{runID: runID}
}

// set replaces the staged run. Called exactly once per run, before any write.
func (s *staging) set(run cms.StagedRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = run
}

func (s *staging) create(index int) (cms.PageIndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.run.Creates) {
		return cms.PageIndexRecord{}, fmt.Errorf("no staged create at index %d (run %s)", index, s.runID)
	}
	return s.run.Creates[index], nil
}

func (s *staging) update(index int) (cms.IndexItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.run.Updates) {
		return cms.IndexItem{}, fmt.Errorf("no staged update at index %d (run %s)", index, s.runID)
	}
	return s.run.Updates[index], nil
}

func (s *staging) meta() (repository, contentType, language string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run.Repository, s.run.ContentType, s.run.Language
}
