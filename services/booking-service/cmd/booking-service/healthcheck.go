package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
)

// runHealthcheck asks the gRPC health service at addr whether service is
// SERVING. Container HEALTHCHECK runs the binary with -healthcheck.
func runHealthcheck(ctx context.Context, addr, service string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return grpcx.HealthCheck(ctx, conn, service)
}
