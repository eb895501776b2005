package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReplayState is the phase of one reprocessing run.
type ReplayState string

const (
	ReplayIdle                  ReplayState = "IDLE"
	ReplayCollectingExistingIDs ReplayState = "COLLECTING_EXISTING_IDS"
	ReplayReapplying            ReplayState = "REAPPLYING"
	ReplayDiffing               ReplayState = "DIFFING"
	ReplayEventRecording        ReplayState = "EVENT_RECORDING"
	ReplayFailed                ReplayState = "FAILED"
)

// TransactionChange pairs a transaction with the replacement replay produced.
type TransactionChange struct {
	Old *Transaction
	New *Transaction
}

// ReplayRequest describes one reprocessing run.
type ReplayRequest struct {
	// FromDate is the earliest date touched by the edit.
	FromDate time.Time
	// BusinessDate stamps reversals made by the run.
	BusinessDate time.Time
	// Pending, when set, is a new transaction attached after the id snapshot. It
	// is allocated during the replay and never reported as a change.
	Pending *Transaction
}

// ReplayResult is the outcome of a reprocessing run.
type ReplayResult struct {
	Changes []TransactionChange
	// NewTransactionIDs and NewlyReversedIDs feed the accounting bridge.
	NewTransactionIDs []string
	NewlyReversedIDs  []string
	// ChangedBeforeFromDate lists transactions dated before FromDate whose
	// allocation still changed.
	ChangedBeforeFromDate []string
	States                []ReplayState
}

// FinalState is the state the run ended in.
func (r *ReplayResult) FinalState() ReplayState {
	if len(r.States) == 0 {
		return ReplayIdle
	}
	return r.States[len(r.States)-1]
}

// ReprocessingCoordinator rebuilds a loan's paid state by replaying its
// transactions and reports allocation changes through the notifier passed to
// each run.
type ReprocessingCoordinator struct {
	sm  LifecycleStateMachine
	now func() time.Time
}

func NewReprocessingCoordinator(sm LifecycleStateMachine) *ReprocessingCoordinator {
	return &ReprocessingCoordinator{sm: sm, now: time.Now}
}

// Reprocess replays every non-reversed replayable transaction in chronological
// order against a zeroed schedule. Transactions whose portions change are
// reversed and replaced, one change pair each. An empty diff opens no event
// window.
func (c *ReprocessingCoordinator) Reprocess(ctx context.Context, loan *Loan, notifier BusinessEventNotifier, req ReplayRequest) (res *ReplayResult, err error) {
	res = &ReplayResult{States: []ReplayState{ReplayIdle}}
	enter := func(s ReplayState) { res.States = append(res.States, s) }
	defer func() {
		if err != nil {
			enter(ReplayFailed)
		}
	}()
	defer recoverMismatch(&err)

	enter(ReplayCollectingExistingIDs)
	existing := loan.TransactionIDs()
	reversed := loan.ReversedTransactionIDs()
	if req.Pending != nil {
		if err := loan.validateNewTransaction(req.Pending); err != nil {
			return res, err
		}
		loan.appendTransaction(req.Pending)
	}

	enter(ReplayReapplying)
	loan.ResetDerivedState()
	loan.RefreshChargeComponents()
	type replayed struct{ old, fresh *Transaction }
	var runs []replayed
	for _, tx := range loan.NonReversedReplayable() {
		fresh := tx.CopyForReplay()
		if _, err := loan.allocate(fresh); err != nil {
			return res, fmt.Errorf("replay transaction %s: %w", tx.ID, err)
		}
		runs = append(runs, replayed{old: tx, fresh: fresh})
	}

	enter(ReplayDiffing)
	for _, r := range runs {
		if r.old == req.Pending || r.old.SamePortions(r.fresh) {
			adoptAllocation(r.old, r.fresh)
			continue
		}
		if err := r.old.Reverse(req.BusinessDate); err != nil {
			return res, err
		}
		r.fresh.ID = uuid.New().String()
		r.old.ReplacedByID = r.fresh.ID
		loan.Transactions = append(loan.Transactions, r.fresh)
		res.Changes = append(res.Changes, TransactionChange{Old: r.old, New: r.fresh})
		if r.old.Date.Before(req.FromDate) {
			res.ChangedBeforeFromDate = append(res.ChangedBeforeFromDate, r.old.ID)
		}
	}
	loan.refreshOverpaid()
	if err := loan.UpdateSummary(); err != nil {
		return res, err
	}
	if req.Pending != nil {
		if err := c.sm.Transition(EventForKind(req.Pending.Kind), loan); err != nil {
			return res, err
		}
	}
	c.sm.DetermineAndTransition(loan, req.BusinessDate)

	for _, t := range loan.Transactions {
		if !existing[t.ID] {
			res.NewTransactionIDs = append(res.NewTransactionIDs, t.ID)
		}
		if t.Reversed && !reversed[t.ID] {
			res.NewlyReversedIDs = append(res.NewlyReversedIDs, t.ID)
		}
	}

	if len(res.Changes) == 0 {
		enter(ReplayIdle)
		return res, nil
	}

	enter(ReplayEventRecording)
	if err := c.emit(ctx, notifier, loan.ID, res.Changes); err != nil {
		return res, err
	}
	enter(ReplayIdle)
	return res, nil
}

// emit sends one adjusted event per change inside a recording window. Any exit
// other than a successful stop resets the window, panics included.
func (c *ReprocessingCoordinator) emit(ctx context.Context, notifier BusinessEventNotifier, loanID string, changes []TransactionChange) error {
	if err := notifier.StartExternalEventRecording(); err != nil {
		return err
	}
	stopped := false
	defer func() {
		if !stopped {
			notifier.ResetEventRecording()
		}
	}()
	for _, ch := range changes {
		if err := notifier.NotifyPostBusinessEvent(ctx, NewTransactionAdjustedEvent(loanID, ch.Old, ch.New, c.now())); err != nil {
			return err
		}
	}
	if err := notifier.StopExternalEventRecording(ctx); err != nil {
		return err
	}
	stopped = true
	return nil
}

func adoptAllocation(dst, src *Transaction) {
	dst.Principal, dst.Interest, dst.Fee, dst.Penalty = src.Principal, src.Interest, src.Fee, src.Penalty
	dst.Overpayment = src.Overpayment
	dst.Mappings = src.Mappings
	dst.ChargesPaid = src.ChargesPaid
}
