package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/institute-grading-api/internal/dto"
	"github.com/noah-isme/institute-grading-api/internal/models"
	"github.com/noah-isme/institute-grading-api/pkg/jobs"
	"github.com/noah-isme/institute-grading-api/pkg/middleware/requestid"
)

// JobTypeRecalculateProfile identifies profile recalculation jobs.
const JobTypeRecalculateProfile = "grading.recalculate_profile"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type profileRecalculator interface {
	RecalculateProfile(ctx context.Context, key models.DistributionKey) (*dto.RecalculationReport, error)
}

// QueueRecalculationScheduler schedules recalculation on a background queue.
type QueueRecalculationScheduler struct {
	queue jobEnqueuer
}

// NewQueueRecalculationScheduler constructs the scheduler.
func NewQueueRecalculationScheduler(queue jobEnqueuer) *QueueRecalculationScheduler {
	return &QueueRecalculationScheduler{queue: queue}
}

// ScheduleRecalculation implements RecalculationScheduler.
func (s *QueueRecalculationScheduler) ScheduleRecalculation(ctx context.Context, key models.DistributionKey) error {
	return s.queue.Enqueue(jobs.Job{
		ID:        uuid.NewString(),
		Type:      JobTypeRecalculateProfile,
		Key:       string(key.EducationLevel) + ":" + string(key.StudySystem),
		RequestID: requestid.FromContext(ctx),
		Payload:   models.DistributionKey{EducationLevel: key.EducationLevel, StudySystem: key.StudySystem},
	})
}

// RecalculationJobHandler runs queued recalculation jobs. Returned errors make
// the queue retry the job.
func RecalculationJobHandler(recalculator profileRecalculator) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != JobTypeRecalculateProfile {
			return fmt.Errorf("unsupported job type %q", job.Type)
		}
		key, ok := job.Payload.(models.DistributionKey)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		report, err := recalculator.RecalculateProfile(ctx, key)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("job %s: %d records failed to recalculate", job.ID, report.Failed)
		}
		return nil
	}
}
