package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/storage"
)

type GroupKind string

const (
	GroupSimple       GroupKind = "simple"
	GroupSplit        GroupKind = "split"
	GroupInstallment  GroupKind = "installment"
	GroupSubscription GroupKind = "subscription"
)

// GroupInfo is the derived shape of an origin group. Kind is never persisted;
// it is recomputed from stored rows so there is no second source of truth.
type GroupInfo struct {
	Kind     GroupKind
	OriginID string
	Members  []core.Transaction
}

// classifyGroup loads a transaction and its origin siblings and classifies
// the group. The result does not depend on which member id was queried: a
// bare origin means simple, an origin matching a subscription id means
// subscription, one shared payment date means split, several mean
// installment.
func classifyGroup(ctx context.Context, q *storage.Queries, txID int64) (GroupInfo, error) {
	tx, err := q.GetTransaction(ctx, txID)
	if err != nil {
		return GroupInfo{}, err
	}

	if tx.OriginID == "" {
		return GroupInfo{Kind: GroupSimple, Members: []core.Transaction{tx}}, nil
	}

	_, err = q.GetSubscription(ctx, tx.OriginID)
	switch {
	case err == nil:
		members, err := q.ListByOrigin(ctx, tx.OriginID)
		if err != nil {
			return GroupInfo{}, err
		}
		return GroupInfo{Kind: GroupSubscription, OriginID: tx.OriginID, Members: members}, nil
	case !errors.Is(err, core.ErrNotFound):
		return GroupInfo{}, err
	}

	members, err := q.ListByOrigin(ctx, tx.OriginID)
	if err != nil {
		return GroupInfo{}, err
	}
	if len(members) == 0 {
		return GroupInfo{}, fmt.Errorf("group %s has no members: %w", tx.OriginID, core.ErrState)
	}

	kind := GroupSplit
	for _, m := range members[1:] {
		if !m.DatePayed.Equal(members[0].DatePayed) {
			kind = GroupInstallment
			break
		}
	}
	return GroupInfo{Kind: kind, OriginID: tx.OriginID, Members: members}, nil
}
