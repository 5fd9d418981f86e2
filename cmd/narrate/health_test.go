package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func stubProbes(t *testing.T, httpErr error, voices int, grpcErr error) (*string, *string) {
	t.Helper()
	origHTTP, origGRPC := probeHTTP, probeGRPC
	t.Cleanup(func() { probeHTTP, probeGRPC = origHTTP, origGRPC })

	var httpAddr, grpcAddr string
	probeHTTP = func(addr string) error {
		httpAddr = addr
		return httpErr
	}
	probeGRPC = func(_ context.Context, addr string, _ bool) (int, error) {
		grpcAddr = addr
		return voices, grpcErr
	}
	return &httpAddr, &grpcAddr
}

func TestHealth_ProbesBothTransports(t *testing.T) {
	httpAddr, grpcAddr := stubProbes(t, nil, 5, nil)

	stdout, _, err := runCLI(t, "health", "--addr", "host:1", "--grpc-addr", "host:2")
	if err != nil {
		t.Fatalf("health returned error: %v", err)
	}
	if *httpAddr != "host:1" || *grpcAddr != "host:2" {
		t.Errorf("probed %q and %q", *httpAddr, *grpcAddr)
	}
	if stdout != "grpc: 5 voices\nok\n" {
		t.Errorf("unexpected stdout: %q", stdout)
	}
}

func TestHealth_DefaultsToConfiguredAddrs(t *testing.T) {
	httpAddr, grpcAddr := stubProbes(t, nil, 1, nil)

	if _, _, err := runCLI(t, "health"); err != nil {
		t.Fatalf("health returned error: %v", err)
	}
	if *httpAddr != ":8080" || *grpcAddr != ":9090" {
		t.Errorf("probed %q and %q", *httpAddr, *grpcAddr)
	}
}

func TestHealth_SkipsGRPCWhenDisabled(t *testing.T) {
	_, grpcAddr := stubProbes(t, nil, 0, errors.New("must not be called"))

	stdout, _, err := runCLI(t, "health", "--server-grpc-addr", "")
	if err != nil {
		t.Fatalf("health returned error: %v", err)
	}
	if *grpcAddr != "" || stdout != "ok\n" {
		t.Errorf("unexpected gRPC probe %q, stdout %q", *grpcAddr, stdout)
	}
}

func TestHealth_Failures(t *testing.T) {
	stubProbes(t, errors.New("connection refused"), 0, nil)
	_, _, err := runCLI(t, "health", "--addr", "host:1")
	if err == nil || !strings.Contains(err.Error(), "http host:1: connection refused") {
		t.Fatalf("unexpected error: %v", err)
	}

	stubProbes(t, nil, 0, errors.New("unavailable"))
	_, _, err = runCLI(t, "health", "--addr", "host:1", "--grpc-addr", "host:2")
	if err == nil || !strings.Contains(err.Error(), "grpc host:2: unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
}
