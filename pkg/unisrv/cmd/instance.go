package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/resolve"
)

const (
	minMemoryMB = 128
	maxMemoryMB = 128 * 1024
	maxVCPUs    = 32

	defaultStopTimeoutMS = 5000
	maxStopTimeoutMS     = 600000
)

func NewInstanceCommand() *cobra.Command {
	var includeStopped bool
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"vm", "instances"},
		Short:   "Manage instances",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listInstances(cmd, includeStopped)
		},
	}
	cmd.Flags().BoolVarP(&includeStopped, "include-stopped", "a", false, "Include stopped instances")

	cmd.AddCommand(
		newInstanceRunCommand(),
		newInstanceStopCommand(),
		newInstanceListCommand(),
		newInstanceShowCommand(),
		newInstanceLogsCommand(),
		newInstanceExposeCommand(),
	)
	return cmd
}

func newInstanceListCommand() *cobra.Command {
	var includeStopped bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List running instances",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listInstances(cmd, includeStopped)
		},
	}
	cmd.Flags().BoolVarP(&includeStopped, "include-stopped", "a", false, "Include stopped instances")
	return cmd
}

func listInstances(cmd *cobra.Command, includeStopped bool) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, _, err := buildClient(rt)
	if err != nil {
		return err
	}
	instances, err := apiClient.Instances().List(cmd.Context())
	if err != nil {
		return err
	}
	visible := make([]client.Instance, 0, len(instances))
	for _, i := range instances {
		if includeStopped || i.State == client.InstanceStateActive {
			visible = append(visible, i)
		}
	}
	return rt.Render(visible, func(w io.Writer) {
		if len(visible) == 0 {
			_, _ = fmt.Fprintln(w, "No instances found")
			return
		}
		output.WriteInstanceTable(w, visible)
	})
}

func newInstanceRunCommand() *cobra.Command {
	var (
		vcpus   uint8
		memory  string
		env     []string
		name    string
		network string
		detach  bool
	)
	cmd := &cobra.Command{
		Use:   "run IMAGE [ARGS...]",
		Short: "Run a new instance from a container image",
		Example: `  unisrv instance run nginx:latest
  unisrv instance run -m 2G -c 2 -e MODE=prod --network @backend myapp:1.2 serve --port 8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if vcpus < 1 || vcpus > maxVCPUs {
				return apierrors.Validation("vcpus must be between 1 and %d", maxVCPUs)
			}
			memoryMB, err := parseMemoryMB(memory)
			if err != nil {
				return err
			}
			envVars, err := parseEnv(env)
			if err != nil {
				return err
			}

			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			req := client.InstanceRequest{
				VCPUCount: vcpus,
				MemoryMB:  memoryMB,
				Configuration: client.ContainerConfiguration{
					ContainerImage: args[0],
					Args:           args[1:],
					Env:            envVars,
				},
			}
			if name != "" {
				req.Name = &name
			}
			if network != "" {
				attachment, err := resolveNetworkAttachment(ctx, apiClient, network)
				if err != nil {
					return err
				}
				req.Network = attachment
			}

			rt.Logger().Debugw("Starting instance", "image", args[0], "vcpus", vcpus, "memoryMB", memoryMB)
			id, err := apiClient.Instances().Create(ctx, req)
			if err != nil {
				return err
			}

			result := struct {
				ID uuid.UUID `json:"id" yaml:"id"`
			}{id}
			if err := rt.Render(result, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, output.Success(fmt.Sprintf("Instance %s started successfully", shortID(id))))
			}); err != nil {
				return err
			}
			if detach {
				return nil
			}
			return streamInstanceLogs(ctx, rt, apiClient, id)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().Uint8VarP(&vcpus, "vcpus", "c", 1, "Number of vCPUs [1-32]")
	cmd.Flags().StringVarP(&memory, "memory", "m", "1024M", "Memory in MB (M) or GB (G) [128M-128G]")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Instance name")
	cmd.Flags().StringVar(&network, "network", "", "Join a network: [IP]@NETWORK (IP is assigned when omitted)")
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "Return after start without streaming logs")
	return cmd
}

func newInstanceStopCommand() *cobra.Command {
	var timeoutMS uint32
	cmd := &cobra.Command{
		Use:     "stop INSTANCE",
		Aliases: []string{"rm"},
		Short:   "Stop an instance by ID, ID prefix or name",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if timeoutMS > maxStopTimeoutMS {
				return apierrors.Validation("timeout must be between 0 and %d ms", maxStopTimeoutMS)
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			id, err := resolve.Resolve(cmd.Context(), resolve.KindInstance, args[0], resolve.Instances(apiClient, false))
			if err != nil {
				return err
			}
			if err := apiClient.Instances().Stop(cmd.Context(), id, timeoutMS); err != nil {
				return err
			}
			rt.Printf("Successfully stopped instance with UUID: %s\n", id)
			return nil
		},
	}
	cmd.Flags().Uint32VarP(&timeoutMS, "timeout", "t", defaultStopTimeoutMS, "Graceful shutdown timeout in milliseconds [0-600000]")
	return cmd
}

func newInstanceShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show INSTANCE",
		Aliases: []string{"get", "info"},
		Short:   "Show details of an instance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			id, err := resolve.Resolve(cmd.Context(), resolve.KindInstance, args[0], resolve.Instances(apiClient, true))
			if err != nil {
				return err
			}
			detail, err := apiClient.Instances().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return rt.Render(detail, func(w io.Writer) {
				output.WriteInstanceDetail(w, detail)
			})
		},
	}
}

func newInstanceLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logs INSTANCE",
		Aliases: []string{"log"},
		Short:   "Stream the logs of a running instance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			id, err := resolve.Resolve(cmd.Context(), resolve.KindInstance, args[0], resolve.Instances(apiClient, false))
			if err != nil {
				return err
			}
			return streamInstanceLogs(cmd.Context(), rt, apiClient, id)
		},
	}
}

func newInstanceExposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expose INSTANCE PORT",
		Short: "Expose a TCP port of an instance on a public address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			port, err := parsePort(args[1])
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			id, err := resolve.Resolve(cmd.Context(), resolve.KindInstance, args[0], resolve.Instances(apiClient, false))
			if err != nil {
				return err
			}
			exposed, err := apiClient.Instances().Expose(cmd.Context(), id, port)
			if err != nil {
				return err
			}
			return rt.Render(exposed, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Port %d of instance %s is reachable at %s\n", port, shortID(id), exposed.ExternalAddress)
			})
		},
	}
}

// streamInstanceLogs follows the log stream until the server closes it or
// the command context is cancelled.
func streamInstanceLogs(ctx context.Context, rt *runtimeState, apiClient *client.Client, id uuid.UUID) error {
	return apiClient.Instances().StreamLogs(ctx, id, func(msg client.LogMessage) error {
		writeLogMessage(rt.Writer(), rt.ErrWriter(), msg)
		return nil
	})
}

func writeLogMessage(stdout, stderr io.Writer, msg client.LogMessage) {
	switch msg.LogType {
	case client.LogTypeStdout:
		_, _ = fmt.Fprintln(stdout, msg.Message)
	case client.LogTypeStderr:
		_, _ = fmt.Fprintln(stderr, msg.Message)
	case client.LogTypeSystem:
		_, _ = fmt.Fprintf(stderr, "[Instance] %s - %s\n", msg.Time().UTC().Format(time.DateTime), msg.Message)
	case client.LogTypeState:
		switch msg.State {
		case client.InitStatePullingContainerImage:
			_, _ = fmt.Fprintln(stderr, "Pulling container image...")
		case client.InitStateOnline:
			_, _ = fmt.Fprintln(stderr, "Instance is online")
		case client.InitStateExecutingContainer:
			_, _ = fmt.Fprintln(stderr, "Executing container...")
		default:
			_, _ = fmt.Fprintf(stderr, "Instance state: %s\n", msg.State)
		}
	}
}

// parseMemoryMB accepts a number of megabytes with an optional M or G unit.
func parseMemoryMB(value string) (uint32, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, apierrors.Validation("memory value cannot be empty")
	}
	multiplier := uint64(1)
	switch s[len(s)-1] {
	case 'm', 'M':
		s = s[:len(s)-1]
	case 'g', 'G':
		s = s[:len(s)-1]
		multiplier = 1024
	}
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, apierrors.Validation("invalid memory value %q: expected a number with an optional M or G unit", value)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, apierrors.Validation("invalid memory value %q", value)
	}
	mb := n * multiplier
	if mb < minMemoryMB || mb > maxMemoryMB {
		return 0, apierrors.Validation("memory must be between 128M and 128G (%d MB)", mb)
	}
	return uint32(mb), nil
}

func parseEnv(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, apierrors.Validation("invalid environment variable %q: expected KEY=VALUE", v)
		}
		env[key] = value
	}
	return env, nil
}

func parsePort(value string) (uint16, error) {
	port, err := strconv.ParseUint(value, 10, 16)
	if err != nil || port == 0 {
		return 0, apierrors.Validation("invalid port %q: expected 1-65535", value)
	}
	return uint16(port), nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
