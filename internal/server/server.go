package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/emrgen/linkstore/internal/config"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcvalidator "github.com/grpc-ecosystem/go-grpc-middleware/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
)

// Server represents the server
type Server struct {
	grpcPort string
	httpPort string
}

// NewServer creates a new server
func NewServer(grpcPort, httpPort string) *Server {
	return &Server{
		grpcPort: grpcPort,
		httpPort: httpPort,
	}
}

// Start starts the server
func (s *Server) Start() {
	cfg := config.LoadConfig()
	cfg.GrpcPort = s.grpcPort
	cfg.HttpPort = s.httpPort

	if err := Start(cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

func newGrpcServer(app *App) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			grpcvalidator.UnaryServerInterceptor(),
			UnaryErrorLogInterceptor(),
			// log the request time
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)
	v1.RegisterLinkServiceServer(grpcServer, app.Service)

	return grpcServer
}

// Start starts the grpc and http servers and blocks until a stop signal.
func Start(cfg *config.Config) error {
	var err error

	grpcPort := ":" + cfg.GrpcPort
	httpPort := ":" + cfg.HttpPort

	app, err := Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logrus.Errorf("error closing store: %v", err)
		}
	}()

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	grpcServer := newGrpcServer(app)

	mux, err := newGatewayMux(app.Service)
	if err != nil {
		return err
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
	})

	restServer := &http.Server{
		Addr:    httpPort,
		Handler: c.Handler(mux),
	}

	if err := app.Executor.Run(); err != nil {
		return err
	}
	defer app.Executor.Stop()

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	// Start the rest gateway
	go func() {
		defer wg.Done()
		logrus.Info("starting rest gateway on: ", httpPort)
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest gateway: %v", err)
			}
		}
		logrus.Infof("rest gateway stopped")
	}()

	// Start the grpc server
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	time.Sleep(1 * time.Second)
	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	grpcServer.GracefulStop()
	err = restServer.Shutdown(context.Background())
	if err != nil {
		logrus.Errorf("error stopping rest gateway: %v", err)
	}

	wg.Wait()

	return nil
}
