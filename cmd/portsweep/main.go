package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/portsweep/portsweep/pkg/config"
	"github.com/portsweep/portsweep/pkg/icmp"
	"github.com/portsweep/portsweep/pkg/input"
	"github.com/portsweep/portsweep/pkg/output"
	"github.com/portsweep/portsweep/pkg/portspec"
	"github.com/portsweep/portsweep/pkg/rdns"
	"github.com/portsweep/portsweep/pkg/scanner"
)

// CLI flags
var (
	portSpec string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "portsweep [flags] <network>...",
	Short: "Single-shot host and port discovery",
	Long: `Portsweep - discover reachable hosts and listening TCP ports

Takes one or more CIDR networks, IP addresses, or hostnames and runs a
bounded three-phase sweep: reverse-DNS, ICMP reachability, TCP connect.
Progress lines appear as probes complete; the final per-host report is
printed in input order.`,

	Example: `  # Sweep a network with the default common-port list
  portsweep 192.168.1.0/24

  # Specific ports on one host
  portsweep -p 22,80,443 192.168.1.10

  # Port ranges; "-" means every port
  portsweep -p 8000-8888 db.example.com
  portsweep -p - 192.168.1.10

  # Several networks in one sweep, with debug logging
  portsweep -d 10.0.0.0/30 192.168.1.0/29`,

	Args:          cobra.MinimumNArgs(1),
	RunE:          runSweep,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&portSpec, "ports", "p", "", "Ports to probe (e.g. 22,80,8000-8888; default: common ports)")
	f.BoolVarP(&debug, "debug", "d", false, "Debug logging")
}

func runSweep(cmd *cobra.Command, args []string) error {
	initLogger()

	// Validate all input before any probing starts.
	ports, err := portspec.Parse(portSpec)
	if err != nil {
		return err
	}

	targets, err := input.Targets(args, ports)
	if err != nil {
		return err
	}

	slog.Debug("targets resolved", "targets", len(targets), "ports", len(ports))

	pinger := icmp.NewPinger(icmp.Config{
		Timeout:    config.Sweep.ProbeTimeout,
		Privileged: false,
	})
	if err := pinger.Start(); err != nil {
		return fmt.Errorf("failed to start pinger: %w", err)
	}
	defer pinger.Stop()

	// Reverse DNS is best-effort: without a usable resolver config the
	// sweep simply reports bare addresses.
	var resolver scanner.AddrResolver
	if r, err := rdns.NewResolver(rdns.Config{Timeout: config.Sweep.ProbeTimeout}); err != nil {
		slog.Warn("reverse DNS disabled", "error", err)
	} else {
		resolver = r
	}

	sweeper := scanner.New(scanner.DefaultConfig(), pinger, resolver)
	if err := sweeper.Run(context.Background(), targets); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	return output.NewReporter(os.Stdout).Write(targets)
}

func initLogger() {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
