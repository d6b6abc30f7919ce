// Package netinfo inspects the local network environment: active per-app
// connections, VPN tunnel state, and DNS configuration. Like psnet it shells
// out to platform tools and parses their output; the exec and file hooks are
// injectable so parsers stay testable.
package netinfo

import (
	"context"
	"os"
	"os/exec"

	"netctl/pkg/logx"
)

// Inspector is the shared entry point for connections, vpn and dns lookups.
type Inspector struct {
	log logx.Logger

	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	readFile   func(path string) ([]byte, error)
}

func NewInspector(log logx.Logger) *Inspector {
	return &Inspector{
		log:        log,
		runCommand: runCommand,
		readFile:   os.ReadFile,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}
