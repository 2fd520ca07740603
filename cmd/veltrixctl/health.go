package main

import (
	"fmt"
	"time"

	"github.com/ashureev/veltrix/internal/probe"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running server's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := probe.Dial(cmd.Context(), addr, timeout)
			if err != nil {
				return err
			}
			defer client.Close()

			status, err := client.Check(cmd.Context(), probe.ChatService)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "gRPC health address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")
	return cmd
}
