package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const auditTimeout = 5 * time.Minute

// TreeDrift is a tree whose header disagrees with its entries or its owner.
type TreeDrift struct {
	Tree    uuid.UUID
	Owner   rid.RID
	Field   string
	Counted int64
	Stored  int64
	// Orphaned is set when the owner record no longer exists.
	Orphaned bool
}

type AuditReport struct {
	Trees  int
	Drifts []TreeDrift
}

// TreeAuditTask compares every link tree with its entries and its owner. It
// only reports, trees are never changed.
type TreeAuditTask struct {
	store    store.Store
	schedule string
}

var _ CronJob = (*TreeAuditTask)(nil)

func NewTreeAuditTask(schedule string, s store.Store) *TreeAuditTask {
	return &TreeAuditTask{store: s, schedule: schedule}
}

func (a *TreeAuditTask) Name() string {
	return "tree_audit"
}

func (a *TreeAuditTask) Schedule() string {
	return a.schedule
}

func (a *TreeAuditTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	report, err := a.Audit(ctx)
	if err != nil {
		logrus.Errorf("tree audit failed: %v", err)
		return
	}

	logrus.Infof("tree audit checked %d trees, %d drifted", report.Trees, len(report.Drifts))
}

func (a *TreeAuditTask) Audit(ctx context.Context) (*AuditReport, error) {
	trees, err := a.store.ListTrees(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Trees: len(trees)}
	for _, tree := range trees {
		id, err := uuid.Parse(tree.ID)
		if err != nil {
			return nil, err
		}

		stored, err := a.store.CountEntries(ctx, id)
		if err != nil {
			return nil, err
		}

		orphaned := false
		if _, err := a.store.GetRecord(ctx, tree.Owner()); errors.Is(err, store.ErrRecordNotFound) {
			orphaned = true
		} else if err != nil {
			return nil, err
		}

		if stored == tree.EntryCount && !orphaned {
			continue
		}

		drift := TreeDrift{
			Tree:     id,
			Owner:    tree.Owner(),
			Field:    tree.Field,
			Counted:  tree.EntryCount,
			Stored:   stored,
			Orphaned: orphaned,
		}
		report.Drifts = append(report.Drifts, drift)

		logrus.WithFields(logrus.Fields{
			"tree":     id,
			"owner":    drift.Owner,
			"field":    drift.Field,
			"counted":  drift.Counted,
			"stored":   drift.Stored,
			"orphaned": drift.Orphaned,
		}).Warn("link tree drift")
	}

	return report, nil
}
