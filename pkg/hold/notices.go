package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parchment-hq/parchment/pkg/archive"
	"parchment-hq/parchment/pkg/audit"
)

// SendNotice records a preservation notice sent to a custodian for an
// active hold. Dispatch of the notice itself (mail, chat) is the caller's
// concern; the engine records that it happened.
func (e *Engine) SendNotice(ctx context.Context, holdID, custodianID, channel, notes string, actor archive.Actor) (*archive.HoldNotice, error) {
	hold, err := e.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Released() {
		return nil, archive.NewConflictError(fmt.Sprintf("hold %s has been released; notices cannot be sent", holdID))
	}
	if _, err := e.store.GetCustodian(ctx, custodianID); err != nil {
		return nil, err
	}
	if channel == "" {
		channel = "manual"
	}

	notice := &archive.HoldNotice{
		ID:          uuid.New().String(),
		HoldID:      holdID,
		CustodianID: custodianID,
		Channel:     channel,
		SentAt:      time.Now().UTC(),
		SentBy:      actor.ID,
		Notes:       notes,
	}
	if err := e.store.InsertNotice(ctx, notice); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionCreate,
		TargetType:      "HoldNotice",
		TargetID:        notice.ID,
		ActorIP:         actor.IP,
		Details: map[string]any{
			"holdId":      holdID,
			"custodianId": custodianID,
			"channel":     channel,
		},
	}); err != nil {
		return nil, err
	}

	e.collector.RecordNoticeSent(channel)
	e.logger.Info("hold notice sent",
		"hold_id", holdID,
		"custodian_id", custodianID,
		"channel", channel)
	return notice, nil
}

// AcknowledgeNotice marks a notice acknowledged by the custodian (or
// whoever answered on their behalf). Acknowledging twice is a conflict.
func (e *Engine) AcknowledgeNotice(ctx context.Context, holdID, noticeID, acknowledgedBy string, actor archive.Actor) (*archive.HoldNotice, error) {
	notice, err := e.store.GetNotice(ctx, holdID, noticeID)
	if err != nil {
		return nil, err
	}
	if notice.AcknowledgedAt != nil {
		return nil, archive.NewConflictError(fmt.Sprintf("notice %s has already been acknowledged", noticeID))
	}

	now := time.Now().UTC()
	notice.AcknowledgedAt = &now
	notice.AcknowledgedBy = acknowledgedBy
	if err := e.store.UpdateNotice(ctx, notice); err != nil {
		return nil, err
	}

	if _, err := e.ledger.Append(ctx, &audit.Input{
		ActorIdentifier: actor.ID,
		ActionType:      audit.ActionUpdate,
		TargetType:      "HoldNotice",
		TargetID:        notice.ID,
		ActorIP:         actor.IP,
		Details: map[string]any{
			"event":          "notice_acknowledged",
			"holdId":         holdID,
			"acknowledgedBy": acknowledgedBy,
		},
	}); err != nil {
		return nil, err
	}

	return notice, nil
}

// Notices returns the notices of one hold, newest first.
func (e *Engine) Notices(ctx context.Context, holdID string) ([]*archive.HoldNotice, error) {
	if _, err := e.store.GetHold(ctx, holdID); err != nil {
		return nil, err
	}
	return e.store.ListNoticesForHold(ctx, holdID)
}

// RunReminderSweep sends a reminder for every (active hold, custodian)
// pair whose latest notice is unacknowledged and older than the interval.
// Returns the number of reminders sent. Meant to run on a schedule.
func (e *Engine) RunReminderSweep(ctx context.Context, interval time.Duration) (int, error) {
	latest, err := e.store.ListLatestNoticesForActiveHolds(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-interval)
	sent := 0
	for _, notice := range latest {
		if notice.AcknowledgedAt != nil || notice.SentAt.After(cutoff) {
			continue
		}
		if _, err := e.SendNotice(ctx, notice.HoldID, notice.CustodianID, "reminder",
			fmt.Sprintf("reminder for notice %s", notice.ID), archive.SystemActor); err != nil {
			e.logger.Error("reminder failed",
				"hold_id", notice.HoldID,
				"custodian_id", notice.CustodianID,
				"error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		e.logger.Info("reminder sweep completed", "sent", sent)
	}
	return sent, nil
}
