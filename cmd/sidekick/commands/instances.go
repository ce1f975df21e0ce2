package commands

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sidekick-ai/sidekick/internal/discovery"
	"github.com/sidekick-ai/sidekick/internal/event"
	"github.com/sidekick-ai/sidekick/internal/logging"
	"github.com/sidekick-ai/sidekick/internal/watch"
)

var (
	instancesJSON  bool
	instancesWatch bool
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List live editor instances for the current directory",
	Long: `Lists the editor instances discoverable for the current directory,
with a reachability probe per socket. With --watch, follows the socket
directory and reports instances as they appear and disappear.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Pretty: true})

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		instances := discovery.Discover(cfg.ResolvedSocketDir(), cwd)

		if instancesJSON {
			return printJSON(instances)
		}

		printInstances(instances)

		if !instancesWatch {
			return nil
		}
		return watchInstances(cfg.ResolvedSocketDir(), cwd)
	},
}

func init() {
	instancesCmd.Flags().BoolVar(&instancesJSON, "json", false, "Output as JSON")
	instancesCmd.Flags().BoolVar(&instancesWatch, "watch", false, "Follow instance arrivals and departures")
}

type instanceReport struct {
	Kind      discovery.Kind `json:"kind"`
	Socket    string         `json:"socket"`
	PID       int            `json:"pid"`
	Reachable bool           `json:"reachable"`
}

func printJSON(instances []discovery.Instance) error {
	reports := make([]instanceReport, 0, len(instances))
	for _, inst := range instances {
		reports = append(reports, instanceReport{
			Kind:      inst.Kind,
			Socket:    inst.Socket,
			PID:       inst.PID,
			Reachable: probe(inst.Socket),
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func printInstances(instances []discovery.Instance) {
	if len(instances) == 0 {
		fmt.Println(color.YellowString("no editor instances found for this directory"))
		return
	}

	kindColor := color.New(color.FgCyan).SprintFunc()
	okColor := color.New(color.FgGreen).SprintFunc()
	badColor := color.New(color.FgRed).SprintFunc()

	for _, inst := range instances {
		state := okColor("reachable")
		if !probe(inst.Socket) {
			state = badColor("unreachable")
		}
		fmt.Printf("%s  pid %-7d %s  %s\n", kindColor(fmt.Sprintf("%-8s", inst.Kind.DisplayName())), inst.PID, state, inst.Socket)
	}
}

// probe checks whether the socket accepts connections. A socket file whose
// owner died still sits on disk; the probe separates live from stale.
func probe(socket string) bool {
	conn, err := net.DialTimeout("unix", socket, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func watchInstances(socketDir, cwd string) error {
	w, err := watch.NewWatcher(socketDir, cwd)
	if err != nil {
		return fmt.Errorf("watch %s: %w", socketDir, err)
	}

	unsubAppear := event.Subscribe(event.InstanceAppeared, func(ev event.Event) {
		if inst, ok := ev.Data.(discovery.Instance); ok {
			fmt.Printf("%s %s pid %d %s\n", color.GreenString("+"), inst.Kind.DisplayName(), inst.PID, inst.Socket)
		}
	})
	defer unsubAppear()
	unsubRemove := event.Subscribe(event.InstanceRemoved, func(ev event.Event) {
		if inst, ok := ev.Data.(discovery.Instance); ok {
			fmt.Printf("%s %s\n", color.RedString("-"), inst.Socket)
		}
	})
	defer unsubRemove()

	w.Start()
	defer w.Stop()

	fmt.Println("watching for instances (ctrl-c to stop)")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
