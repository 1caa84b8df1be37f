package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
)

// CronAuctionScheduler persists start/end jobs and polls for due ones.
// Nothing inside the engine fires endAuction on its own; this scheduler is
// the external trigger, and leader election keeps a multi-instance
// deployment from firing the same transition twice.
type CronAuctionScheduler struct {
	cron       *cron.Cron
	repo       domain.SchedulerRepository
	engine     *BiddingEngine
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

func NewCronAuctionScheduler(repo domain.SchedulerRepository, engine *BiddingEngine,
	leader domain.LeaderElection, instanceID string, log logger.Logger) *CronAuctionScheduler {
	return &CronAuctionScheduler{
		cron:       cron.New(cron.WithSeconds()),
		repo:       repo,
		engine:     engine,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler")

	_, err := s.cron.AddFunc("@every 1s", func() {
		s.processPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronAuctionScheduler) ScheduleAuctionStart(ctx context.Context, auctionID string, startTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		JobType:   domain.JobStartAuction,
		RunAt:     startTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) ScheduleAuctionEnd(ctx context.Context, auctionID string, endTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		JobType:   domain.JobEndAuction,
		RunAt:     endTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

// RescheduleAuctionEnd replaces the pending end job after an anti-snipe
// extension moved the closing time.
func (s *CronAuctionScheduler) RescheduleAuctionEnd(ctx context.Context, auctionID string, newEndTime time.Time) error {
	if err := s.repo.CancelJobsForAuction(ctx, auctionID); err != nil {
		return err
	}

	return s.ScheduleAuctionEnd(ctx, auctionID, newEndTime)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

func (s *CronAuctionScheduler) processPendingJobs(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leadership check failed", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobStartAuction:
			_, err = s.engine.StartAuction(ctx, job.AuctionID)
		case domain.JobEndAuction:
			_, err = s.engine.EndAuction(ctx, job.AuctionID)
		}

		if err != nil {
			// A transition refused by the state machine will never succeed
			// on retry; anything else is retried on the next tick.
			var invalid *domain.InvalidTransitionError
			if !errors.As(err, &invalid) {
				s.log.Error("Failed to execute job, will retry", "job_id", job.ID, "error", err)
				continue
			}
			s.log.Warn("Job skipped: transition no longer valid", "job_id", job.ID, "error", err)
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
		}
	}
}
