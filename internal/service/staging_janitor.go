package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/pkg/jobs"
)

// JobPruneStaging triggers a StagingJanitor sweep.
const JobPruneStaging = "staging.prune"

// stagingRoot holds every employee staging area.
const stagingRoot = "pending"

type stagingLister interface {
	ListOlderThan(prefix string, ttl time.Duration) ([]string, error)
}

type pendingChangesSource interface {
	PendingChanges(ctx context.Context, employeeIDs []int64) ([]models.ProfileRequest, error)
}

// StagingJanitor removes staged uploads that no pending request references
// once they are older than the configured TTL.
type StagingJanitor struct {
	files     stagingLister
	requests  pendingChangesSource
	documents *PendingDocumentStore
	ttl       time.Duration
	logger    *zap.Logger
}

// NewStagingJanitor constructs the janitor. A non-positive ttl defaults to 72h.
func NewStagingJanitor(files stagingLister, requests pendingChangesSource, documents *PendingDocumentStore, ttl time.Duration, logger *zap.Logger) *StagingJanitor {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StagingJanitor{files: files, requests: requests, documents: documents, ttl: ttl, logger: logger}
}

// PruneReport summarises one sweep.
type PruneReport struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Removed    []string `json:"removed"`
}

// Prune deletes stale unreferenced staged files. With dryRun set nothing is deleted.
func (j *StagingJanitor) Prune(ctx context.Context, dryRun bool) (*PruneReport, error) {
	stale, err := j.files.ListOlderThan(stagingRoot, j.ttl)
	if err != nil {
		return nil, err
	}
	pending, err := j.requests.PendingChanges(ctx, nil)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{})
	for _, r := range pending {
		for _, p := range r.ProposedChanges.StagedPaths() {
			referenced[p] = struct{}{}
		}
	}

	report := &PruneReport{Scanned: len(stale), Removed: []string{}}
	for _, handle := range stale {
		if _, ok := referenced[handle]; ok {
			report.Referenced++
			continue
		}
		if !dryRun {
			if err := j.documents.Discard(ctx, handle); err != nil {
				j.logger.Warn("failed to prune staged document", zap.String("path", handle), zap.Error(err))
				continue
			}
		}
		report.Removed = append(report.Removed, handle)
	}
	j.logger.Info("staging sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("referenced", report.Referenced),
		zap.Int("removed", len(report.Removed)),
		zap.Bool("dry_run", dryRun))
	return report, nil
}

// HandleJob runs a sweep for a JobPruneStaging job.
func (j *StagingJanitor) HandleJob(ctx context.Context, _ jobs.Job) error {
	_, err := j.Prune(ctx, false)
	return err
}
