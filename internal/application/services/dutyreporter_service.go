package services

import (
	"context"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/committee"
	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
)

// DutyReporter logs the duties of the tracked validators every time the
// clock enters a new epoch.
type DutyReporter struct {
	Params       GeneratorParams
	PollInterval time.Duration

	// Validators we report on
	Validators domain.ValidatorSet

	assigner       *committee.Assigner
	lastEpoch      domain.Epoch
	reportedAnyYet bool
}

func NewDutyReporter(params GeneratorParams, pollInterval time.Duration, validators domain.ValidatorSet) *DutyReporter {
	return &DutyReporter{
		Params:       params,
		PollInterval: pollInterval,
		Validators:   validators,
		assigner:     committee.New(params.Params()),
	}
}

// Run reports the current epoch right away and then polls for epoch changes.
func (r *DutyReporter) Run(ctx context.Context) {
	r.checkCurrentEpoch()

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.checkCurrentEpoch()
		case <-ctx.Done():
			return
		}
	}
}

func (r *DutyReporter) checkCurrentEpoch() {
	epoch := r.Params.Params().EpochOf(r.Params.Clock().Now())
	if r.reportedAnyYet && epoch == r.lastEpoch {
		logger.Debug("Epoch %d unchanged, skipping report.", epoch)
		return
	}
	r.lastEpoch = epoch
	r.reportedAnyYet = true

	if r.Validators.Len() == 0 {
		logger.Warn("No validator indices configured; nothing to report.")
		return
	}
	r.Report(epoch)
}

// Report logs block proposals, attestation duties and sync committee
// membership of the tracked validators for the epoch.
func (r *DutyReporter) Report(epoch domain.Epoch) {
	params := r.Params.Params()
	start := params.EpochStartSlot(epoch)

	proposals := 0
	for slot := start; slot < start+domain.Slot(params.SlotsPerEpoch()); slot++ {
		if proposer, ok := r.assigner.Proposer(slot, r.Validators); ok {
			proposals++
			logger.Info("📦 Validator %d proposes the block of slot %d", proposer, slot)
		}
	}

	aggregators, syncMembers := 0, 0
	for _, duty := range r.assigner.Duties(epoch, r.Validators) {
		switch {
		case duty.IsAggregator:
			aggregators++
			logger.Debug("Validator %d attests at slot %d on subnet %d and aggregates",
				duty.ValidatorIndex, duty.AttestationSlot, duty.AttestationSubnet)
		default:
			logger.Debug("Validator %d attests at slot %d on subnet %d",
				duty.ValidatorIndex, duty.AttestationSlot, duty.AttestationSubnet)
		}
		if duty.InSyncCommittee {
			syncMembers++
			logger.Debug("Validator %d is in sync subnet %d", duty.ValidatorIndex, duty.SyncSubnet)
		}
	}

	logger.Info("Epoch %d: %d validators, %d proposals, %d attestation aggregators, %d sync committee members",
		epoch, r.Validators.Len(), proposals, aggregators, syncMembers)
}
