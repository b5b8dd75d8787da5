package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/burrowvm/burrow/internal/clone"
	"github.com/burrowvm/burrow/internal/config"
	"github.com/burrowvm/burrow/internal/fleet"
	"github.com/burrowvm/burrow/internal/naming"
	"github.com/burrowvm/burrow/internal/output"
	"github.com/burrowvm/burrow/internal/utmctl"
	"github.com/burrowvm/burrow/internal/vm"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - ephemeral VM clones from a golden image",
	Long: `Burrow manages a fleet of ephemeral virtual machines cloned from a
single golden image on top of the UTM hypervisor.

Each clone gets a fresh identity (name, UUID, MAC address) and can
optionally attach the shared persistent disk or open a display window,
both of which are exclusive across the fleet.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

func init() {
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(suspendCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(ipCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(execCmd)
}

// setup loads the configuration and wires the orchestrator together.
func setup() (*config.Config, *utmctl.Client, *vm.Orchestrator, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, nil, nil, err
	}
	client := utmctl.New(cfg.UtmctlPath, cfg.OpenCommand)
	engine := clone.NewEngine(cfg, client)
	scan := fleet.NewScanner(cfg, client)
	return cfg, client, vm.New(cfg, client, engine, scan), nil
}

var (
	upGUI   bool
	upDisk  bool
	upNoSSH bool
)

var upCmd = &cobra.Command{
	Use:   "up <label>",
	Short: "Ensure a clone exists and is running, then log in",
	Long: `Ensure the clone for <label> exists and is running.

If no such clone exists it is created from the golden image with a fresh
identity. Once the guest reports an IP address, burrow hands off to the
external ssh binary unless --no-ssh is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]
		cfg, _, orch, err := setup()
		if err != nil {
			return err
		}

		ctx := context.Background()
		inst, err := orch.EnsureRunning(ctx, label, vm.EnsureOptions{
			GUI:        upGUI,
			AttachDisk: upDisk,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Instance %s is %s\n", inst.Name, inst.Status)

		ip, err := orch.AwaitIP(ctx, inst.Name)
		if err != nil {
			if errors.Is(err, vm.ErrIPTimeout) {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				return nil
			}
			return err
		}
		fmt.Printf("IP address: %s\n", ip)

		if upNoSSH {
			return nil
		}
		return runSSH(cfg.SSHUser, ip)
	},
}

func init() {
	upCmd.Flags().BoolVar(&upGUI, "gui", false, "open a display window (exclusive across the fleet)")
	upCmd.Flags().BoolVar(&upDisk, "disk", false, "attach the shared persistent disk (exclusive across the fleet)")
	upCmd.Flags().BoolVar(&upNoSSH, "no-ssh", false, "print the IP address instead of logging in")
}

// runSSH hands the terminal over to the external ssh binary.
func runSSH(user, ip string) error {
	ssh := exec.Command("ssh", fmt.Sprintf("%s@%s", user, ip))
	ssh.Stdin = os.Stdin
	ssh.Stdout = os.Stdout
	ssh.Stderr = os.Stderr
	return ssh.Run()
}

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the clone fleet",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, orch, err := setup()
		if err != nil {
			return err
		}

		instances, err := orch.List(context.Background())
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{Format: output.Format(listFormat)})
		if err != nil {
			return err
		}
		text, err := formatter.FormatInstances(instances)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "output", "o", "table", "output format (table, yaml, json)")
}

var stopCmd = &cobra.Command{
	Use:   "stop <label>",
	Short: "Stop a clone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, orch, err := setup()
		if err != nil {
			return err
		}
		return orch.Stop(context.Background(), args[0])
	},
}

var suspendCmd = &cobra.Command{
	Use:   "suspend <label>",
	Short: "Suspend a clone, saving its state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, orch, err := setup()
		if err != nil {
			return err
		}
		return orch.Suspend(context.Background(), args[0])
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <label>",
	Short: "Destroy a clone and its bundle",
	Long: `Destroy the clone for <label>.

This stops the instance if it is running, deletes it from the
hypervisor, and removes the bundle directory. The golden image is never
touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, orch, err := setup()
		if err != nil {
			return err
		}
		return orch.Destroy(context.Background(), args[0])
	},
}

var ipCmd = &cobra.Command{
	Use:   "ip <label>",
	Short: "Print a clone's IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, orch, err := setup()
		if err != nil {
			return err
		}
		if err := naming.ValidateLabel(args[0]); err != nil {
			return err
		}
		name := naming.InstanceName(cfg.NamePrefix, args[0])
		ip, err := orch.AwaitIP(context.Background(), name)
		if err != nil {
			return err
		}
		fmt.Println(ip)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <label>",
	Short: "Print a clone's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, orch, err := setup()
		if err != nil {
			return err
		}
		status, err := orch.Status(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <label>",
	Short: "Attach to a clone's serial console",
	Long: `Attach the terminal to the clone's serial console via utmctl.

This is the escape hatch when IP discovery times out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, _, err := setup()
		if err != nil {
			return err
		}
		if err := naming.ValidateLabel(args[0]); err != nil {
			return err
		}
		name := naming.InstanceName(cfg.NamePrefix, args[0])
		console := exec.Command(cfg.UtmctlPath, "attach", name)
		console.Stdin = os.Stdin
		console.Stdout = os.Stdout
		console.Stderr = os.Stderr
		return console.Run()
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <label> -- <command>...",
	Short: "Run a command inside a clone",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, _, err := setup()
		if err != nil {
			return err
		}
		if err := naming.ValidateLabel(args[0]); err != nil {
			return err
		}
		name := naming.InstanceName(cfg.NamePrefix, args[0])
		out, err := client.ExecRemote(context.Background(), name, args[1:]...)
		fmt.Print(out)
		return err
	},
}
