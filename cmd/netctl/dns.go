package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"netctl/internal/netinfo"
	"netctl/internal/render"
)

func newDNSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "DNS diagnostics and benchmarking",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "resolve <domain>",
			Short: "Resolve a domain name",
			Args:  cobra.ExactArgs(1),
			RunE:  runDNSResolveCmd,
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Flush the DNS cache",
			Args:  cobra.NoArgs,
			RunE:  runDNSFlushCmd,
		},
		&cobra.Command{
			Use:   "servers",
			Short: "Show current DNS servers",
			Args:  cobra.NoArgs,
			RunE:  runDNSServersCmd,
		},
		&cobra.Command{
			Use:   "benchmark",
			Short: "Benchmark DNS resolver performance",
			Args:  cobra.NoArgs,
			RunE:  runDNSBenchmarkCmd,
		},
	)
	return cmd
}

func runDNSResolveCmd(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := netinfo.NewInspector(a.log).Resolve(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", args[0], err)
	}
	if jsonOut {
		return printJSON(res)
	}
	fmt.Print(render.ResolveResult(res))
	return nil
}

func runDNSFlushCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if !netinfo.NewInspector(a.log).FlushCache(cmd.Context()) {
		return fmt.Errorf("could not flush DNS cache (may require sudo)")
	}
	fmt.Println("DNS cache flushed")
	return nil
}

func runDNSServersCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	servers := netinfo.NewInspector(a.log).Servers(cmd.Context())
	if jsonOut {
		return printJSON(servers)
	}
	fmt.Print(render.DNSServers(servers))
	return nil
}

func runDNSBenchmarkCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("running DNS benchmark...")
	results := netinfo.NewInspector(a.log).Benchmark(cmd.Context())
	if jsonOut {
		return printJSON(results)
	}
	fmt.Print(render.DNSBenchmark(results))
	return nil
}
