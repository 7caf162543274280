package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

const jobInterval = "@every 1s"

type Job interface {
	Name() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs jobs on the cron, a job never overlaps with itself.
type TaskExecutor struct {
	cron            *cron.Cron
	jobs            []Job
	cronJobs        []CronJob
	runningJobs     mapset.Set[Job]
	runningCronJobs mapset.Set[CronJob]
	muJobs          sync.Mutex
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(jobs []Job, cronJobs []CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		jobs:            jobs,
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewSet[CronJob](),
		runningJobs:     mapset.NewSet[Job](),
	}
}

// Run schedules every job and starts the cron. Each job runs in its own
// goroutine inside the cron.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		if err := t.cron.AddFunc(job.Schedule(), t.runCronJob(job)); err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			return err
		}
	}

	for _, job := range t.jobs {
		if err := t.cron.AddFunc(jobInterval, t.runJob(job)); err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			return err
		}
	}

	t.cron.Start()
	logrus.Infof("started %d jobs and %d cron jobs", len(t.jobs), len(t.cronJobs))

	return nil
}

func (t *TaskExecutor) runCronJob(job CronJob) func() {
	return func() {
		t.muCronJobs.Lock()
		if t.runningCronJobs.Contains(job) {
			t.muCronJobs.Unlock()
			logrus.Warnf("task %s is already running", job.Name())
			return
		}
		t.runningCronJobs.Add(job)
		t.muCronJobs.Unlock()

		defer func() {
			t.muCronJobs.Lock()
			defer t.muCronJobs.Unlock()
			t.runningCronJobs.Remove(job)
		}()

		job.Run()
	}
}

func (t *TaskExecutor) runJob(job Job) func() {
	return func() {
		t.muJobs.Lock()
		if t.runningJobs.Contains(job) {
			t.muJobs.Unlock()
			logrus.Debugf("task %s is already running", job.Name())
			return
		}
		t.runningJobs.Add(job)
		t.muJobs.Unlock()

		defer func() {
			t.muJobs.Lock()
			defer t.muJobs.Unlock()
			t.runningJobs.Remove(job)
		}()

		job.Run()
	}
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}
