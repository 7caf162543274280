package jobs

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/emrgen/linkstore/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeAuditTask_Audit(t *testing.T) {
	ctx := context.TODO()
	db := tester.NewTestDB(t)
	s := store.NewGormStore(db)

	owner := rid.New(1, 0)
	require.NoError(t, s.CreateRecord(ctx, &model.Record{Cluster: 1, Position: 0, Class: "Person"}))

	healthy, err := s.CreateTree(ctx, owner, "friends")
	require.NoError(t, err)
	require.NoError(t, s.InsertEntries(ctx, uuid.MustParse(healthy.ID), []*model.LinkTreeEntry{
		model.NewLinkTreeEntry(healthy.ID, 0, rid.New(2, 1), rid.New(2, 1)),
		model.NewLinkTreeEntry(healthy.ID, 0, rid.New(2, 2), rid.New(2, 2)),
	}))

	task := NewTreeAuditTask("@every 1m", s)
	report, err := task.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Trees)
	assert.Empty(t, report.Drifts)

	orphan, err := s.CreateTree(ctx, rid.New(1, 99), "tags")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.LinkTree{}).Where("id = ?", healthy.ID).Update("entry_count", 5).Error)

	report, err = task.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Trees)
	require.Len(t, report.Drifts, 2)

	drifts := make(map[string]TreeDrift)
	for _, d := range report.Drifts {
		drifts[d.Tree.String()] = d
	}
	assert.Equal(t, int64(5), drifts[healthy.ID].Counted)
	assert.Equal(t, int64(2), drifts[healthy.ID].Stored)
	assert.False(t, drifts[healthy.ID].Orphaned)
	assert.True(t, drifts[orphan.ID].Orphaned)

	// reports only
	count, err := s.CountEntries(ctx, uuid.MustParse(healthy.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIndexFeedJob_Run(t *testing.T) {
	indexes := index.NewManager()
	require.NoError(t, indexes.Define(index.Definition{Name: "friends", Class: "Person", Fields: []string{"friends"}}))

	changes := make(chan index.Change, 4)
	changes <- index.Change{Index: "friends", Key: "#2:1", Record: rid.New(1, 1), Op: index.OpPut}
	changes <- index.Change{Index: "friends", Key: "#2:1", Record: rid.New(1, 2), Op: index.OpPut}

	job := NewIndexFeedJob(changes, indexes)
	job.Run()

	got, err := indexes.Get("friends", "#2:1")
	require.NoError(t, err)
	assert.Equal(t, []rid.RID{rid.New(1, 1), rid.New(1, 2)}, got)

	// nothing queued
	job.Run()

	close(changes)
	job.Run()
	assert.Equal(t, 1, indexes.Size("friends"))
}

type countingJob struct {
	runs atomic.Int32
	hook func()
}

func (c *countingJob) Name() string     { return "counting" }
func (c *countingJob) Schedule() string { return "@every 1h" }
func (c *countingJob) Run() {
	c.runs.Add(1)
	if c.hook != nil {
		c.hook()
	}
}

func TestTaskExecutor_NoOverlap(t *testing.T) {
	job := &countingJob{}
	executor := NewTaskExecutor([]Job{job}, []CronJob{job})

	run := executor.runCronJob(job)
	// a run started while another one is in flight is skipped
	job.hook = func() { run() }
	run()
	assert.Equal(t, int32(1), job.runs.Load())

	job.hook = nil
	run()
	assert.Equal(t, int32(2), job.runs.Load())

	runJob := executor.runJob(job)
	job.hook = func() { runJob() }
	runJob()
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestTaskExecutor_InvalidSchedule(t *testing.T) {
	task := NewTreeAuditTask("not a schedule", nil)
	executor := NewTaskExecutor(nil, []CronJob{task})

	assert.Error(t, executor.Run())
}
