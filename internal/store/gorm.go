package store

import (
	"context"
	"errors"

	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const insertBatchSize = 500

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) NextPosition(ctx context.Context, cluster int32) (int64, error) {
	db := g.db.WithContext(ctx)

	var position model.ClusterPosition
	err := db.Where("cluster = ?", cluster).First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		position = model.ClusterPosition{Cluster: cluster, NextPosition: 0}
		err = db.Create(&position).Error
	}
	if err != nil {
		return 0, err
	}

	err = db.Model(&model.ClusterPosition{}).
		Where("cluster = ?", cluster).
		UpdateColumn("next_position", gorm.Expr("next_position + ?", 1)).Error
	if err != nil {
		return 0, err
	}

	return position.NextPosition, nil
}

func (g *GormStore) CreateRecord(ctx context.Context, record *model.Record) error {
	return g.db.WithContext(ctx).Create(record).Error
}

func (g *GormStore) GetRecord(ctx context.Context, id rid.RID) (*model.Record, error) {
	var record model.Record
	err := g.db.WithContext(ctx).Where("cluster = ? AND position = ?", id.Cluster, id.Position).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (g *GormStore) ListRecords(ctx context.Context, class string) ([]*model.Record, error) {
	var records []*model.Record
	err := g.db.WithContext(ctx).Where("class = ?", class).Order("cluster, position").Find(&records).Error
	return records, err
}

func (g *GormStore) UpdateRecord(ctx context.Context, record *model.Record) error {
	res := g.db.WithContext(ctx).Model(&model.Record{}).
		Where("cluster = ? AND position = ?", record.Cluster, record.Position).
		Updates(map[string]any{
			"class":       record.Class,
			"version":     record.Version,
			"payload":     record.Payload,
			"compression": record.Compression,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (g *GormStore) DeleteRecord(ctx context.Context, id rid.RID) error {
	return g.db.WithContext(ctx).
		Where("cluster = ? AND position = ?", id.Cluster, id.Position).
		Delete(&model.Record{}).Error
}

func (g *GormStore) CreateTree(ctx context.Context, owner rid.RID, field string) (*model.LinkTree, error) {
	tree := &model.LinkTree{
		ID:            uuid.New().String(),
		OwnerCluster:  owner.Cluster,
		OwnerPosition: owner.Position,
		Field:         field,
		NextSeq:       1,
	}
	if err := g.db.WithContext(ctx).Create(tree).Error; err != nil {
		return nil, err
	}

	logrus.Debugf("allocated link tree %s for %s.%s", tree.ID, owner, field)

	return tree, nil
}

func (g *GormStore) GetTree(ctx context.Context, id uuid.UUID) (*model.LinkTree, error) {
	var tree model.LinkTree
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&tree).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTreeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tree, nil
}

func (g *GormStore) ListTrees(ctx context.Context) ([]*model.LinkTree, error) {
	var trees []*model.LinkTree
	err := g.db.WithContext(ctx).Order("created_at").Find(&trees).Error
	return trees, err
}

// DropTree deletes the entries before the header so no entry outlives its tree.
func (g *GormStore) DropTree(ctx context.Context, id uuid.UUID) error {
	return g.Transaction(ctx, func(tx Store) error {
		db := tx.(*GormStore).db.WithContext(ctx)
		if err := db.Where("tree_id = ?", id.String()).Delete(&model.LinkTreeEntry{}).Error; err != nil {
			return err
		}

		res := db.Where("id = ?", id.String()).Delete(&model.LinkTree{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTreeNotFound
		}

		logrus.Debugf("released link tree %s", id)

		return nil
	})
}

func (g *GormStore) RetargetTree(ctx context.Context, id uuid.UUID, owner rid.RID) error {
	res := g.db.WithContext(ctx).Model(&model.LinkTree{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{"owner_cluster": owner.Cluster, "owner_position": owner.Position})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTreeNotFound
	}

	return nil
}

func (g *GormStore) InsertEntries(ctx context.Context, id uuid.UUID, entries []*model.LinkTreeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return g.Transaction(ctx, func(tx Store) error {
		db := tx.(*GormStore).db.WithContext(ctx)

		var tree model.LinkTree
		err := db.Where("id = ?", id.String()).First(&tree).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTreeNotFound
		}
		if err != nil {
			return err
		}

		next := tree.NextSeq
		for _, entry := range entries {
			entry.TreeID = tree.ID
			if entry.Seq == 0 {
				entry.Seq = next
			}
			if entry.Seq >= next {
				next = entry.Seq + 1
			}
		}

		if err := db.CreateInBatches(entries, insertBatchSize).Error; err != nil {
			return err
		}

		return db.Model(&model.LinkTree{}).Where("id = ?", tree.ID).Updates(map[string]any{
			"next_seq":    next,
			"entry_count": gorm.Expr("entry_count + ?", len(entries)),
		}).Error
	})
}

func (g *GormStore) FirstEntry(ctx context.Context, id uuid.UUID, primary rid.RID) (*model.LinkTreeEntry, error) {
	var entry model.LinkTreeEntry
	err := g.db.WithContext(ctx).
		Where("tree_id = ? AND primary_cluster = ? AND primary_position = ?", id.String(), primary.Cluster, primary.Position).
		Order("seq").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (g *GormStore) FindEntries(ctx context.Context, id uuid.UUID, primary rid.RID) ([]*model.LinkTreeEntry, error) {
	var entries []*model.LinkTreeEntry
	err := g.db.WithContext(ctx).
		Where("tree_id = ? AND primary_cluster = ? AND primary_position = ?", id.String(), primary.Cluster, primary.Position).
		Order("seq").
		Find(&entries).Error
	return entries, err
}

func (g *GormStore) SeekEntries(ctx context.Context, id uuid.UUID, primary *rid.RID, seq int64, limit int) ([]*model.LinkTreeEntry, error) {
	query := g.db.WithContext(ctx).Where("tree_id = ?", id.String())
	if primary != nil {
		query = query.Where(
			"((primary_cluster > ?) OR (primary_cluster = ? AND primary_position > ?) OR (primary_cluster = ? AND primary_position = ? AND seq > ?))",
			primary.Cluster,
			primary.Cluster, primary.Position,
			primary.Cluster, primary.Position, seq,
		)
	}

	var entries []*model.LinkTreeEntry
	err := query.Order("primary_cluster, primary_position, seq").Limit(limit).Find(&entries).Error
	return entries, err
}

func (g *GormStore) DeleteEntry(ctx context.Context, id uuid.UUID, seq int64) error {
	return g.Transaction(ctx, func(tx Store) error {
		db := tx.(*GormStore).db.WithContext(ctx)

		res := db.Where("tree_id = ? AND seq = ?", id.String(), seq).Delete(&model.LinkTreeEntry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEntryNotFound
		}

		return db.Model(&model.LinkTree{}).Where("id = ?", id.String()).
			UpdateColumn("entry_count", gorm.Expr("entry_count - ?", 1)).Error
	})
}

func (g *GormStore) RekeyEntries(ctx context.Context, id uuid.UUID, from, to rid.RID) error {
	return g.Transaction(ctx, func(tx Store) error {
		db := tx.(*GormStore).db.WithContext(ctx)

		err := db.Model(&model.LinkTreeEntry{}).
			Where("tree_id = ? AND primary_cluster = ? AND primary_position = ?", id.String(), from.Cluster, from.Position).
			Updates(map[string]any{"primary_cluster": to.Cluster, "primary_position": to.Position}).Error
		if err != nil {
			return err
		}

		return db.Model(&model.LinkTreeEntry{}).
			Where("tree_id = ? AND secondary_cluster = ? AND secondary_position = ?", id.String(), from.Cluster, from.Position).
			Updates(map[string]any{"secondary_cluster": to.Cluster, "secondary_position": to.Position}).Error
	})
}

func (g *GormStore) CountEntries(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.LinkTreeEntry{}).Where("tree_id = ?", id.String()).Count(&count).Error
	return count, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Close() error {
	db, err := g.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}

// Transaction runs f inside a database transaction, nested calls become savepoints.
func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
