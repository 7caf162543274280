package service

import (
	"context"
	"fmt"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/emrgen/linkstore/internal/database"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/jobs"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/sirupsen/logrus"
)

var (
	_ v1.LinkServiceServer = (*LinkService)(nil)
)

// NewLinkService creates a new LinkService.
func NewLinkService(db *database.Database, audit *jobs.TreeAuditTask) *LinkService {
	return &LinkService{db: db, audit: audit}
}

// LinkService manages records and the links they hold.
type LinkService struct {
	db    *database.Database
	audit *jobs.TreeAuditTask
	v1.UnimplementedLinkServiceServer
}

// CreateRecord creates a record with its fields and links in one transaction.
func (s *LinkService) CreateRecord(ctx context.Context, request *v1.CreateRecordRequest) (*v1.CreateRecordResponse, error) {
	var record *v1.Record
	err := s.db.Update(ctx, func(tx *database.Tx) error {
		r, err := tx.NewRecord(request.Cluster, request.Class)
		if err != nil {
			return err
		}

		for field, value := range request.Fields {
			if err := r.Set(field, value); err != nil {
				return err
			}
		}

		for field, links := range request.Links {
			ids, err := parseRIDs(links)
			if err != nil {
				return err
			}

			b, err := r.Bag(field)
			if err != nil {
				return err
			}
			if err := b.AddAll(ctx, ids); err != nil {
				return err
			}
		}

		// the identity is final once the checkpoint ran
		if err := tx.Checkpoint(ctx); err != nil {
			return err
		}

		record, err = toRecord(r)
		return err
	})
	if err != nil {
		return nil, toStatus(err)
	}
	// the commit saved the first version
	record.Version++

	logrus.Infof("created record %s of class %s", record.Id, record.Class)

	return &v1.CreateRecordResponse{Record: record}, nil
}

func (s *LinkService) GetRecord(ctx context.Context, request *v1.GetRecordRequest) (*v1.GetRecordResponse, error) {
	id, err := rid.Parse(request.Id)
	if err != nil {
		return nil, toStatus(err)
	}

	var record *v1.Record
	err = s.db.View(ctx, func(tx *database.Tx) error {
		r, err := tx.Load(ctx, id)
		if err != nil {
			return err
		}

		record, err = toRecord(r)
		return err
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &v1.GetRecordResponse{Record: record}, nil
}

// DeleteRecord deletes a record, the trees of its bags go with it.
func (s *LinkService) DeleteRecord(ctx context.Context, request *v1.DeleteRecordRequest) (*v1.DeleteRecordResponse, error) {
	id, err := rid.Parse(request.Id)
	if err != nil {
		return nil, toStatus(err)
	}

	err = s.db.Update(ctx, func(tx *database.Tx) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return nil, toStatus(err)
	}

	logrus.Infof("deleted record %s", id)

	return &v1.DeleteRecordResponse{Id: id.String()}, nil
}

func (s *LinkService) AddLinks(ctx context.Context, request *v1.AddLinksRequest) (*v1.AddLinksResponse, error) {
	id, err := rid.Parse(request.Id)
	if err != nil {
		return nil, toStatus(err)
	}
	links, err := parseRIDs(request.Links)
	if err != nil {
		return nil, toStatus(err)
	}

	var bag v1.Bag
	err = s.db.Update(ctx, func(tx *database.Tx) error {
		b, err := loadBag(ctx, tx, id, request.Field)
		if err != nil {
			return err
		}
		if err := b.AddAll(ctx, links); err != nil {
			return err
		}

		bag = toBag(b)
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &v1.AddLinksResponse{Bag: bag}, nil
}

// RemoveLinks removes one occurrence per requested link, absent links are skipped.
func (s *LinkService) RemoveLinks(ctx context.Context, request *v1.RemoveLinksRequest) (*v1.RemoveLinksResponse, error) {
	id, err := rid.Parse(request.Id)
	if err != nil {
		return nil, toStatus(err)
	}
	links, err := parseRIDs(request.Links)
	if err != nil {
		return nil, toStatus(err)
	}

	res := &v1.RemoveLinksResponse{}
	err = s.db.Update(ctx, func(tx *database.Tx) error {
		b, err := loadBag(ctx, tx, id, request.Field)
		if err != nil {
			return err
		}

		res.Removed = 0
		for _, link := range links {
			ok, err := b.Remove(ctx, link)
			if err != nil {
				return err
			}
			if ok {
				res.Removed++
			}
		}

		res.Bag = toBag(b)
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return res, nil
}

// ListLinks pages through the links of a field in primary order.
func (s *LinkService) ListLinks(ctx context.Context, request *v1.ListLinksRequest) (*v1.ListLinksResponse, error) {
	id, err := rid.Parse(request.Id)
	if err != nil {
		return nil, toStatus(err)
	}

	res := &v1.ListLinksResponse{Links: make([]v1.Link, 0)}
	err = s.db.View(ctx, func(tx *database.Tx) error {
		b, err := loadBag(ctx, tx, id, request.Field)
		if err != nil {
			return err
		}
		res.Bag = toBag(b)

		it := b.Iterator()
		for skipped := 0; it.Next(ctx); skipped++ {
			if skipped < request.Offset {
				continue
			}
			if request.Limit > 0 && len(res.Links) == request.Limit {
				break
			}

			res.Links = append(res.Links, toLink(it.Entry()))
		}

		return it.Err()
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return res, nil
}

// DefineIndex adds an index and fills it from the stored records.
func (s *LinkService) DefineIndex(ctx context.Context, request *v1.DefineIndexRequest) (*v1.DefineIndexResponse, error) {
	def := index.Definition{Name: request.Name, Class: request.Class, Fields: request.Fields}
	if err := s.db.DefineIndex(ctx, def); err != nil {
		return nil, toStatus(err)
	}

	return &v1.DefineIndexResponse{Name: def.Name, Keys: s.db.Indexes().Size(def.Name)}, nil
}

func (s *LinkService) QueryIndex(ctx context.Context, request *v1.QueryIndexRequest) (*v1.QueryIndexResponse, error) {
	ids, err := s.db.Indexes().Get(request.Name, request.Values...)
	if err != nil {
		return nil, toStatus(err)
	}

	res := &v1.QueryIndexResponse{Records: make([]string, 0, len(ids))}
	for _, id := range ids {
		res.Records = append(res.Records, id.String())
	}

	return res, nil
}

// AuditTrees reports trees whose counters or owners drifted.
func (s *LinkService) AuditTrees(ctx context.Context, request *v1.AuditTreesRequest) (*v1.AuditTreesResponse, error) {
	report, err := s.audit.Audit(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	res := &v1.AuditTreesResponse{Trees: report.Trees, Drifts: make([]v1.TreeDrift, 0, len(report.Drifts))}
	for _, d := range report.Drifts {
		res.Drifts = append(res.Drifts, v1.TreeDrift{
			Tree:     d.Tree.String(),
			Owner:    d.Owner.String(),
			Field:    d.Field,
			Counted:  d.Counted,
			Stored:   d.Stored,
			Orphaned: d.Orphaned,
		})
	}

	return res, nil
}

func loadBag(ctx context.Context, tx *database.Tx, id rid.RID, field string) (*linkbag.Bag, error) {
	r, err := tx.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := r.Get(field); ok {
		return nil, fmt.Errorf("%w: %s", ErrNotABag, field)
	}

	return r.Bag(field)
}

func parseRIDs(values []string) ([]rid.RID, error) {
	ids := make([]rid.RID, 0, len(values))
	for _, v := range values {
		id, err := rid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func toRecord(r *database.Record) (*v1.Record, error) {
	record := &v1.Record{
		Id:      r.ID().String(),
		Class:   r.Class(),
		Version: r.Version(),
		Fields:  make(map[string]any),
		Bags:    make(map[string]v1.Bag),
	}

	for _, field := range r.Fields() {
		record.Fields[field], _ = r.Get(field)
	}
	for _, field := range r.BagFields() {
		b, err := r.Bag(field)
		if err != nil {
			return nil, err
		}
		record.Bags[field] = toBag(b)
	}

	return record, nil
}

func toBag(b *linkbag.Bag) v1.Bag {
	bag := v1.Bag{Size: b.Size(), Embedded: b.IsEmbedded()}
	if id, ok := b.TreeID(); ok {
		bag.Tree = id.String()
	}

	return bag
}

func toLink(e linkbag.Entry) v1.Link {
	link := v1.Link{Primary: e.Primary.String()}
	if e.Secondary != e.Primary {
		link.Secondary = e.Secondary.String()
	}

	return link
}
