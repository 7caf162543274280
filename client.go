package linkstore

import (
	"io"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client interface {
	io.Closer
	v1.LinkServiceClient
}

type client struct {
	conn *grpc.ClientConn
	v1.LinkServiceClient
}

// NewClient connects to the grpc server listening on port.
func NewClient(port string, opts ...grpc.DialOption) (Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(":"+port, opts...)
	if err != nil {
		return nil, err
	}
	return &client{
		conn:              conn,
		LinkServiceClient: v1.NewLinkServiceClient(conn),
	}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}
