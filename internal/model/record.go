package model

import (
	"time"

	"github.com/emrgen/linkstore/internal/rid"
)

// Record is the stored form of a record. Payload holds the encoded fields,
// including the embedded link bags and the references to external trees.
type Record struct {
	Cluster     int32  `gorm:"primaryKey;autoIncrement:false"`
	Position    int64  `gorm:"primaryKey;autoIncrement:false"`
	Class       string `gorm:"not null;index:idx_records_class"`
	Version     int64  `gorm:"not null;default:0"`
	Payload     []byte
	Compression string // the compression algorithm used to compress the payload
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Record) TableName() string {
	return "records"
}

func (r *Record) RID() rid.RID {
	return rid.New(r.Cluster, r.Position)
}

// ClusterPosition keeps the next free position of a cluster.
type ClusterPosition struct {
	Cluster      int32 `gorm:"primaryKey;autoIncrement:false"`
	NextPosition int64 `gorm:"not null;default:0"`
}

func (ClusterPosition) TableName() string {
	return "cluster_positions"
}
