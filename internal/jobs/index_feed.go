package jobs

import (
	"github.com/emrgen/linkstore/internal/index"
	"github.com/sirupsen/logrus"
)

const indexFeedBatch = 512

// IndexFeedJob applies index changes published by other writers. Changes are
// idempotent, so changes of this process coming back are harmless.
type IndexFeedJob struct {
	changes <-chan index.Change
	indexes *index.Manager
}

var _ Job = (*IndexFeedJob)(nil)

func NewIndexFeedJob(changes <-chan index.Change, indexes *index.Manager) *IndexFeedJob {
	return &IndexFeedJob{changes: changes, indexes: indexes}
}

func (j *IndexFeedJob) Name() string {
	return "index_feed"
}

// Run applies what is queued right now, up to one batch.
func (j *IndexFeedJob) Run() {
	batch := make([]index.Change, 0, indexFeedBatch)

drain:
	for len(batch) < indexFeedBatch {
		select {
		case change, ok := <-j.changes:
			if !ok {
				break drain
			}
			batch = append(batch, change)
		default:
			break drain
		}
	}

	if len(batch) == 0 {
		return
	}

	j.indexes.Apply(batch)
	logrus.Debugf("applied %d index changes from the feed", len(batch))
}
