package commands

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sidekick-ai/sidekick/internal/discovery"
)

var nvimCmd = &cobra.Command{
	Use:   "nvim [-- nvim args...]",
	Short: "Launch Neovim listening on the discoverable socket for this directory",
	Long: `Computes the deterministic socket path for the current directory and
this process id, then replaces itself with 'nvim --listen <socket>'. An
editor started this way is discoverable by hook invocations running in
the same directory.`,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		socket := discovery.SocketPath(cfg.ResolvedSocketDir(), cwd, discovery.KindNeovim, os.Getpid())

		nvimPath, err := exec.LookPath("nvim")
		if err != nil {
			return fmt.Errorf("nvim not found in PATH: %w", err)
		}

		argv := append([]string{"nvim", "--listen", socket}, args...)
		return syscall.Exec(nvimPath, argv, os.Environ())
	},
}
