package service

import (
	"context"
	"testing"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/emrgen/linkstore/internal/database"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/jobs"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/emrgen/linkstore/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestService(t *testing.T) *LinkService {
	t.Helper()

	s := store.NewGormStore(tester.NewTestDB(t))
	db := database.New(s, database.Options{
		Thresholds: &linkbag.Thresholds{EmbeddedToExternal: 4, ExternalToEmbedded: 2},
	})

	return NewLinkService(db, jobs.NewTreeAuditTask("@every 1m", s))
}

func TestLinkService_Records(t *testing.T) {
	ctx := context.TODO()
	svc := newTestService(t)

	created, err := svc.CreateRecord(ctx, &v1.CreateRecordRequest{
		Cluster: 3,
		Class:   "Person",
		Fields:  map[string]any{"name": "alice"},
		Links:   map[string][]string{"friends": {"#5:1", "#5:2", "#5:1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "#3:0", created.Record.Id)
	assert.Equal(t, int64(1), created.Record.Version)
	assert.Equal(t, v1.Bag{Size: 3, Embedded: true}, created.Record.Bags["friends"])

	got, err := svc.GetRecord(ctx, &v1.GetRecordRequest{Id: created.Record.Id})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Record.Fields["name"])
	assert.Equal(t, 3, got.Record.Bags["friends"].Size)

	_, err = svc.GetRecord(ctx, &v1.GetRecordRequest{Id: "#3:9"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.GetRecord(ctx, &v1.GetRecordRequest{Id: "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	deleted, err := svc.DeleteRecord(ctx, &v1.DeleteRecordRequest{Id: created.Record.Id})
	require.NoError(t, err)
	assert.Equal(t, created.Record.Id, deleted.Id)

	_, err = svc.GetRecord(ctx, &v1.GetRecordRequest{Id: created.Record.Id})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestLinkService_Links(t *testing.T) {
	ctx := context.TODO()
	svc := newTestService(t)

	created, err := svc.CreateRecord(ctx, &v1.CreateRecordRequest{Cluster: 1, Class: "Group", Fields: map[string]any{"title": "x"}})
	require.NoError(t, err)
	id := created.Record.Id

	added, err := svc.AddLinks(ctx, &v1.AddLinksRequest{Id: id, Field: "members", Links: []string{"#2:3", "#2:1", "#2:2", "#2:1", "#2:4"}})
	require.NoError(t, err)
	assert.Equal(t, 5, added.Bag.Size)
	assert.False(t, added.Bag.Embedded)
	assert.NotEmpty(t, added.Bag.Tree)

	listed, err := svc.ListLinks(ctx, &v1.ListLinksRequest{Id: id, Field: "members", Offset: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []v1.Link{{Primary: "#2:1"}, {Primary: "#2:2"}, {Primary: "#2:3"}}, listed.Links)
	assert.Equal(t, 5, listed.Bag.Size)

	removed, err := svc.RemoveLinks(ctx, &v1.RemoveLinksRequest{Id: id, Field: "members", Links: []string{"#2:1", "#2:9", "#2:1", "#2:4"}})
	require.NoError(t, err)
	assert.Equal(t, 3, removed.Removed)
	assert.Equal(t, v1.Bag{Size: 2, Embedded: true}, removed.Bag)

	listed, err = svc.ListLinks(ctx, &v1.ListLinksRequest{Id: id, Field: "members"})
	require.NoError(t, err)
	assert.Equal(t, []v1.Link{{Primary: "#2:2"}, {Primary: "#2:3"}}, listed.Links)

	_, err = svc.AddLinks(ctx, &v1.AddLinksRequest{Id: id, Field: "title", Links: []string{"#2:1"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	audit, err := svc.AuditTrees(ctx, &v1.AuditTreesRequest{})
	require.NoError(t, err)
	assert.Zero(t, audit.Trees)
	assert.Empty(t, audit.Drifts)
}

func TestLinkService_Indexes(t *testing.T) {
	ctx := context.TODO()
	svc := newTestService(t)

	alice, err := svc.CreateRecord(ctx, &v1.CreateRecordRequest{Cluster: 1, Class: "Person", Links: map[string][]string{"friends": {"#9:1"}}})
	require.NoError(t, err)

	defined, err := svc.DefineIndex(ctx, &v1.DefineIndexRequest{Name: "person_friends", Class: "Person", Fields: []string{"friends"}})
	require.NoError(t, err)
	assert.Equal(t, 1, defined.Keys)

	_, err = svc.DefineIndex(ctx, &v1.DefineIndexRequest{Name: "person_friends", Class: "Person", Fields: []string{"friends"}})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	bob, err := svc.CreateRecord(ctx, &v1.CreateRecordRequest{Cluster: 1, Class: "Person", Links: map[string][]string{"friends": {"#9:1", "#9:2"}}})
	require.NoError(t, err)

	found, err := svc.QueryIndex(ctx, &v1.QueryIndexRequest{Name: "person_friends", Values: []string{"#9:1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Record.Id, bob.Record.Id}, found.Records)

	_, err = svc.RemoveLinks(ctx, &v1.RemoveLinksRequest{Id: bob.Record.Id, Field: "friends", Links: []string{"#9:1"}})
	require.NoError(t, err)

	found, err = svc.QueryIndex(ctx, &v1.QueryIndexRequest{Name: "person_friends", Values: []string{"#9:1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Record.Id}, found.Records)

	_, err = svc.QueryIndex(ctx, &v1.QueryIndexRequest{Name: "missing", Values: []string{"x"}})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: nil, code: codes.OK},
		{err: store.ErrRecordNotFound, code: codes.NotFound},
		{err: rid.ErrInvalidRID, code: codes.InvalidArgument},
		{err: index.ErrIndexExists, code: codes.AlreadyExists},
		{err: linkbag.ErrOwnerDetached, code: codes.FailedPrecondition},
		{err: linkbag.ErrInvalidCheckpoint, code: codes.Aborted},
		{err: assert.AnError, code: codes.Internal},
		{err: status.Error(codes.Unavailable, "down"), code: codes.Unavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toStatus(tt.err)), "%v", tt.err)
	}
}
