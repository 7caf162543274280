package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/emrgen/linkstore/internal/database"
	"github.com/emrgen/linkstore/internal/jobs"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/service"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/emrgen/linkstore/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	s := store.NewGormStore(tester.NewTestDB(t))
	db := database.New(s, database.Options{Thresholds: &linkbag.Thresholds{EmbeddedToExternal: 3, ExternalToEmbedded: -1}})

	return &App{Store: s, DB: db, Service: service.NewLinkService(db, jobs.NewTreeAuditTask("@every 1m", s))}
}

func TestGateway(t *testing.T) {
	mux, err := newGatewayMux(newTestApp(t).Service)
	require.NoError(t, err)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	do := func(method, path, body string, out any) int {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		if out != nil && res.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(res.Body).Decode(out))
		}
		return res.StatusCode
	}

	var created v1.CreateRecordResponse
	code := do("POST", "/v1/records", `{"cluster": 4, "class": "Person", "fields": {"name": "alice"}, "links": {"friends": ["#7:1", "#7:2"]}}`, &created)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "#4:0", created.Record.Id)
	assert.Equal(t, 2, created.Record.Bags["friends"].Size)

	var added v1.AddLinksResponse
	code = do("POST", "/v1/records/4/0/links/friends", `{"links": ["#7:3", "#7:1"]}`, &added)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, added.Bag.Size)
	assert.False(t, added.Bag.Embedded)

	var listed v1.ListLinksResponse
	code = do("GET", "/v1/records/4/0/links/friends?limit=2", "", &listed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []v1.Link{{Primary: "#7:1"}, {Primary: "#7:1"}}, listed.Links)

	var removed v1.RemoveLinksResponse
	code = do("POST", "/v1/records/4/0/links/friends/remove", `{"links": ["#7:1"]}`, &removed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, removed.Removed)
	assert.Equal(t, 3, removed.Bag.Size)

	var audit v1.AuditTreesResponse
	code = do("GET", "/v1/trees/audit", "", &audit)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, audit.Trees)

	assert.Equal(t, http.StatusBadRequest, do("POST", "/v1/records", `{"cluster": 1}`, nil))
	assert.Equal(t, http.StatusBadRequest, do("GET", "/v1/records/x/0", "", nil))
	assert.Equal(t, http.StatusOK, do("DELETE", "/v1/records/4/0", "", nil))
	assert.Equal(t, http.StatusNotFound, do("GET", "/v1/records/4/0", "", nil))
}

func TestGrpcServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	grpcServer := newGrpcServer(newTestApp(t))
	go func() { _ = grpcServer.Serve(lis) }()
	defer grpcServer.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(UnaryRequestTimeInterceptor()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.TODO()
	client := v1.NewLinkServiceClient(conn)

	created, err := client.CreateRecord(ctx, &v1.CreateRecordRequest{
		Cluster: 2,
		Class:   "Person",
		Fields:  map[string]any{"age": 30},
		Links:   map[string][]string{"friends": {"#1:1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "#2:0", created.Record.Id)

	got, err := client.GetRecord(ctx, &v1.GetRecordRequest{Id: created.Record.Id})
	require.NoError(t, err)
	assert.Equal(t, float64(30), got.Record.Fields["age"])
	assert.Equal(t, v1.Bag{Size: 1, Embedded: true}, got.Record.Bags["friends"])

	// rejected by the validator before reaching the service
	_, err = client.AddLinks(ctx, &v1.AddLinksRequest{Id: created.Record.Id, Field: "friends", Links: []string{"bad"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetRecord(ctx, &v1.GetRecordRequest{Id: "#2:5"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
