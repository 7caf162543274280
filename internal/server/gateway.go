package server

import (
	"context"
	"net/http"
	"strconv"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/service"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type validator interface {
	Validate() error
}

// newGatewayMux exposes the link service as json over http. Records are
// addressed as /v1/records/{cluster}/{position}.
func newGatewayMux(svc *service.LinkService) (*runtime.ServeMux, error) {
	marshaler := &runtime.JSONPb{
		MarshalOptions: protojson.MarshalOptions{
			EmitUnpopulated: true,
		},
		UnmarshalOptions: protojson.UnmarshalOptions{
			DiscardUnknown: true,
		},
	}
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.HTTPBodyMarshaler{
			Marshaler: marshaler,
		}),
	)

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"POST", "/v1/records", handle(mux, marshaler, svc.CreateRecord, bindBody[v1.CreateRecordRequest])},
		{"GET", "/v1/records/{cluster}/{position}", handle(mux, marshaler, svc.GetRecord, func(r *http.Request, p map[string]string, req *v1.GetRecordRequest) error {
			return bindID(p, &req.Id)
		})},
		{"DELETE", "/v1/records/{cluster}/{position}", handle(mux, marshaler, svc.DeleteRecord, func(r *http.Request, p map[string]string, req *v1.DeleteRecordRequest) error {
			return bindID(p, &req.Id)
		})},
		{"GET", "/v1/records/{cluster}/{position}/links/{field}", handle(mux, marshaler, svc.ListLinks, func(r *http.Request, p map[string]string, req *v1.ListLinksRequest) error {
			req.Field = p["field"]
			var err error
			if req.Offset, err = queryInt(r, "offset"); err != nil {
				return err
			}
			if req.Limit, err = queryInt(r, "limit"); err != nil {
				return err
			}
			return bindID(p, &req.Id)
		})},
		{"POST", "/v1/records/{cluster}/{position}/links/{field}", handle(mux, marshaler, svc.AddLinks, func(r *http.Request, p map[string]string, req *v1.AddLinksRequest) error {
			if err := bindBody(r, p, req); err != nil {
				return err
			}
			req.Field = p["field"]
			return bindID(p, &req.Id)
		})},
		{"POST", "/v1/records/{cluster}/{position}/links/{field}/remove", handle(mux, marshaler, svc.RemoveLinks, func(r *http.Request, p map[string]string, req *v1.RemoveLinksRequest) error {
			if err := bindBody(r, p, req); err != nil {
				return err
			}
			req.Field = p["field"]
			return bindID(p, &req.Id)
		})},
		{"POST", "/v1/indexes", handle(mux, marshaler, svc.DefineIndex, bindBody[v1.DefineIndexRequest])},
		{"GET", "/v1/indexes/{name}", handle(mux, marshaler, svc.QueryIndex, func(r *http.Request, p map[string]string, req *v1.QueryIndexRequest) error {
			req.Name = p["name"]
			req.Values = r.URL.Query()["values"]
			return nil
		})},
		{"GET", "/v1/trees/audit", handle(mux, marshaler, svc.AuditTrees, func(*http.Request, map[string]string, *v1.AuditTreesRequest) error {
			return nil
		})},
	}

	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return nil, err
		}
	}

	return mux, nil
}

// handle binds a request, runs the call and writes the json response, errors
// are written the way the gateway writes grpc errors.
func handle[Req, Resp any](
	mux *runtime.ServeMux,
	marshaler runtime.Marshaler,
	call func(context.Context, *Req) (*Resp, error),
	bind func(*http.Request, map[string]string, *Req) error,
) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx := r.Context()

		req := new(Req)
		if err := bind(r, params, req); err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, status.Error(codes.InvalidArgument, err.Error()))
			return
		}
		if v, ok := any(req).(validator); ok {
			if err := v.Validate(); err != nil {
				runtime.HTTPError(ctx, mux, marshaler, w, r, status.Error(codes.InvalidArgument, err.Error()))
				return
			}
		}

		resp, err := call(ctx, req)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, err)
			return
		}

		out, err := v1.ToStruct(resp)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, status.Error(codes.Internal, err.Error()))
			return
		}

		buf, err := marshaler.Marshal(out)
		if err != nil {
			runtime.HTTPError(ctx, mux, marshaler, w, r, status.Error(codes.Internal, err.Error()))
			return
		}

		w.Header().Set("Content-Type", marshaler.ContentType(out))
		_, _ = w.Write(buf)
	}
}

func bindBody[Req any](r *http.Request, _ map[string]string, req *Req) error {
	body := &structpb.Struct{}
	if err := (&runtime.JSONPb{}).NewDecoder(r.Body).Decode(body); err != nil {
		return err
	}

	return v1.FromStruct(body, req)
}

func bindID(params map[string]string, id *string) error {
	cluster, err := strconv.ParseInt(params["cluster"], 10, 32)
	if err != nil {
		return rid.ErrInvalidRID
	}
	position, err := strconv.ParseInt(params["position"], 10, 64)
	if err != nil {
		return rid.ErrInvalidRID
	}

	*id = rid.New(int32(cluster), position).String()

	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}

	return strconv.Atoi(value)
}
