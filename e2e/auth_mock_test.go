//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultPaylinkCallerAPIKey   = "paylink-caller-key"
	defaultPaylinkNoAccessAPIKey = "paylink-no-access-key"
	defaultPaylinkAppAPIKey      = "paylink-app-api-key"
	paylinkAuthMockAddr          = "0.0.0.0:38085"
)

func paylinkCallerAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("PAYLINK_CALLER_API_KEY")); value != "" {
		return value
	}
	return defaultPaylinkCallerAPIKey
}

func paylinkNoAccessAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("PAYLINK_NO_ACCESS_API_KEY")); value != "" {
		return value
	}
	return defaultPaylinkNoAccessAPIKey
}

func paylinkAppAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("PAYLINK_APP_API_KEY")); value != "" {
		return value
	}
	return defaultPaylinkAppAPIKey
}

type paylinkAuthGRPCServer struct {
	authpb.UnimplementedAuthServiceServer
}

func (s *paylinkAuthGRPCServer) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if incomingPaylinkAPIKey(ctx) != paylinkAppAPIKey() {
		return nil, status.Error(codes.Unauthenticated, "unauthorized caller")
	}

	apiKey := strings.TrimSpace(req.GetApiKey())
	switch apiKey {
	case paylinkCallerAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "merchant-gateway",
			AllowedAccess: []string{"paylink-service", "notifications-service"},
		}, nil
	case paylinkNoAccessAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "merchant-gateway",
			AllowedAccess: []string{"notifications-service"},
		}, nil
	default:
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
}

func incomingPaylinkAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func TestMain(m *testing.M) {
	if os.Getenv("PAYLINK_CALLER_API_KEY") == "" {
		_ = os.Setenv("PAYLINK_CALLER_API_KEY", defaultPaylinkCallerAPIKey)
	}
	if os.Getenv("PAYLINK_NO_ACCESS_API_KEY") == "" {
		_ = os.Setenv("PAYLINK_NO_ACCESS_API_KEY", defaultPaylinkNoAccessAPIKey)
	}
	if os.Getenv("PAYLINK_APP_API_KEY") == "" {
		_ = os.Setenv("PAYLINK_APP_API_KEY", defaultPaylinkAppAPIKey)
	}

	listener, err := net.Listen("tcp", paylinkAuthMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start paylink auth grpc mock: %v\n", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	authpb.RegisterAuthServiceServer(grpcServer, &paylinkAuthGRPCServer{})

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	exitCode := m.Run()

	grpcServer.GracefulStop()
	_ = listener.Close()

	os.Exit(exitCode)
}
