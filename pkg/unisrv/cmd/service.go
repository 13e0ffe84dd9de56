package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/config"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/resolve"
)

func NewServiceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "service",
		Aliases: []string{"srv", "services"},
		Short:   "Manage HTTP services",
		Args:    cobra.NoArgs,
		RunE:    listServices,
	}
	cmd.AddCommand(
		newServiceListCommand(),
		newServiceShowCommand(),
		newServiceDeleteCommand(),
		newServiceNewCommand(),
		newServiceTargetCommand(),
		newServiceLocationCommand(),
	)
	return cmd
}

func newServiceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List services",
		Args:    cobra.NoArgs,
		RunE:    listServices,
	}
}

func listServices(cmd *cobra.Command, _ []string) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, _, err := buildClient(rt)
	if err != nil {
		return err
	}
	services, err := apiClient.Services().List(cmd.Context())
	if err != nil {
		return err
	}
	return rt.Render(services, func(w io.Writer) {
		if len(services) == 0 {
			_, _ = fmt.Fprintln(w, "No services found")
			return
		}
		output.WriteServiceTable(w, services)
	})
}

func newServiceShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show SERVICE",
		Aliases: []string{"get", "info"},
		Short:   "Show a service with its locations and targets",
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
			info, err := fetchService(cmd.Context(), apiClient, args[0])
			if err != nil {
				return err
			}
			return rt.Render(info, func(w io.Writer) {
				output.WriteServiceDetail(w, info)
			})
		},
	}
}

func newServiceDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete SERVICE",
		Aliases: []string{"rm"},
		Short:   "Delete a service",
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
			id, err := resolve.Resolve(cmd.Context(), resolve.KindService, args[0], resolve.Services(apiClient))
			if err != nil {
				return err
			}
			if err := apiClient.Services().Delete(cmd.Context(), id); err != nil {
				return err
			}
			rt.Printf("Service %s deleted\n", shortID(id))
			return nil
		},
	}
}

func newServiceNewCommand() *cobra.Command {
	var allowHTTP bool
	cmd := &cobra.Command{
		Use:     "new NAME HOST",
		Aliases: []string{"create"},
		Short:   "Create an HTTP service reachable at HOST",
		Long: `Create an HTTP service. A HOST without a dot is completed to <HOST>.` + config.HostSuffix + `.
The service starts with one location "/" that forwards to the "default" target group.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			host := strings.ToLower(strings.TrimSpace(args[1]))
			if name == "" || host == "" {
				return apierrors.Validation("service name and host must not be empty")
			}
			host = config.QualifyDomain(host)

			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			id, err := apiClient.Services().Create(cmd.Context(), client.ServiceRequest{
				Name:          name,
				Host:          host,
				Configuration: client.DefaultServiceConfiguration(allowHTTP),
			})
			if err != nil {
				return err
			}
			result := struct {
				ID   uuid.UUID `json:"id" yaml:"id"`
				Name string    `json:"name" yaml:"name"`
				Host string    `json:"host" yaml:"host"`
			}{id, name, host}
			return rt.Render(result, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, output.Success(fmt.Sprintf("Service created with ID %s", id)))
				_, _ = fmt.Fprintf(w, "Reachable at https://%s\n", host)
				_, _ = fmt.Fprintln(w, output.Hint(fmt.Sprintf("Add a target with: unisrv service target add %s INSTANCE:PORT", name)))
			})
		},
	}
	cmd.Flags().BoolVar(&allowHTTP, "allow-http", false, "Serve plain HTTP in addition to HTTPS")
	return cmd
}

func newServiceTargetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage the instance targets of a service",
	}
	cmd.AddCommand(newServiceTargetAddCommand(), newServiceTargetDeleteCommand())
	return cmd
}

func newServiceTargetAddCommand() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "add SERVICE INSTANCE:PORT",
		Short: "Route service traffic to a port of an instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			instanceRef, port, err := parseTarget(args[1])
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			serviceID, err := resolve.Resolve(ctx, resolve.KindService, args[0], resolve.Services(apiClient))
			if err != nil {
				return err
			}
			instanceID, err := resolve.Resolve(ctx, resolve.KindInstance, instanceRef, resolve.Instances(apiClient, false))
			if err != nil {
				return err
			}
			targetID, err := apiClient.Services().AddTarget(ctx, serviceID, client.InstanceTarget{
				InstanceID:   instanceID,
				InstancePort: port,
				Group:        group,
			})
			if err != nil {
				return err
			}
			result := struct {
				ID        uuid.UUID `json:"id" yaml:"id"`
				ServiceID uuid.UUID `json:"service_id" yaml:"serviceId"`
			}{targetID, serviceID}
			return rt.Render(result, func(w io.Writer) {
				suffix := ""
				if group != "" {
					suffix = " [group: " + group + "]"
				}
				_, _ = fmt.Fprintf(w, "Target %s added to service %s (%s:%d%s)\n",
					shortID(targetID), shortID(serviceID), shortID(instanceID), port, suffix)
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Target group (default \""+client.DefaultTargetGroup+"\")")
	return cmd
}

func newServiceTargetDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete SERVICE [TARGET]",
		Aliases: []string{"rm"},
		Short:   "Remove a target from a service",
		Long:    "Remove a target from a service. TARGET may be omitted when the service has exactly one target.",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			info, err := fetchService(cmd.Context(), apiClient, args[0])
			if err != nil {
				return err
			}
			var targetRef string
			if len(args) > 1 {
				targetRef = args[1]
			}
			targetID, err := selectTarget(info, targetRef)
			if err != nil {
				return err
			}
			if err := apiClient.Services().DeleteTarget(cmd.Context(), info.ID, targetID); err != nil {
				return err
			}
			rt.Printf("Target %s deleted from service %s\n", shortID(targetID), shortID(info.ID))
			return nil
		},
	}
}

// selectTarget picks the target named by ref, or the only target when ref
// is empty.
func selectTarget(info *client.ServiceInfo, ref string) (uuid.UUID, error) {
	if len(info.Targets) == 0 {
		return uuid.Nil, &apierrors.NotFoundError{Kind: string(resolve.KindTarget), Reference: info.Name + "/*"}
	}
	if ref != "" {
		return resolve.Match(resolve.KindTarget, ref, resolve.Targets(info.Targets))
	}
	if len(info.Targets) == 1 {
		return info.Targets[0].ID, nil
	}
	ids := make([]string, 0, len(info.Targets))
	for _, t := range info.Targets {
		ids = append(ids, fmt.Sprintf("%s (%s:%d)", shortID(t.ID), shortID(t.InstanceID), t.InstancePort))
	}
	return uuid.Nil, apierrors.Validation("service %s has %d targets, choose one of: %s",
		info.Name, len(info.Targets), strings.Join(ids, ", "))
}

func newServiceLocationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "location",
		Aliases: []string{"loc"},
		Short:   "Manage the path based routing of a service",
	}
	cmd.AddCommand(
		newServiceLocationListCommand(),
		newServiceLocationAddCommand(),
		newServiceLocationDeleteCommand(),
	)
	return cmd
}

func newServiceLocationListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list SERVICE",
		Aliases: []string{"ls"},
		Short:   "List the locations of a service",
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
			info, err := fetchService(cmd.Context(), apiClient, args[0])
			if err != nil {
				return err
			}
			locations := info.Configuration.Locations
			return rt.Render(locations, func(w io.Writer) {
				if len(locations) == 0 {
					_, _ = fmt.Fprintln(w, "No locations configured")
					return
				}
				output.WriteLocationTable(w, locations)
			})
		},
	}
}

func newServiceLocationAddCommand() *cobra.Command {
	var override404 string
	cmd := &cobra.Command{
		Use:   "add SERVICE PATH TYPE [VALUE]",
		Short: "Add a location forwarding PATH to an instance group or a URL",
		Long: `Add a location to a service.

TYPE is one of:
  instance (inst, service, srv)  forward to the instance target group VALUE (default "default")
  url                            forward to the URL VALUE`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			var value string
			if len(args) > 3 {
				value = args[3]
			}
			location, err := buildLocation(args[1], args[2], value, override404)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			info, err := fetchService(cmd.Context(), apiClient, args[0])
			if err != nil {
				return err
			}
			cfg := info.Configuration
			if cfg.FindLocation(location.Path) >= 0 {
				return apierrors.Validation("Location with path '%s' already exists. Delete it first or use a different path", location.Path)
			}
			cfg.Locations = append(cfg.Locations, location)
			if err := apiClient.Services().Update(cmd.Context(), info.ID, cfg); err != nil {
				return err
			}
			return rt.Render(location, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Location %s added to service %s (%s)\n", location.Path, shortID(info.ID), location.Target)
			})
		},
	}
	cmd.Flags().StringVar(&override404, "override-404", "", "Path served instead of upstream 404 responses")
	return cmd
}

func newServiceLocationDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete SERVICE PATH",
		Aliases: []string{"rm"},
		Short:   "Remove a location from a service",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			info, err := fetchService(cmd.Context(), apiClient, args[0])
			if err != nil {
				return err
			}
			cfg := info.Configuration
			idx := cfg.FindLocation(args[1])
			if idx < 0 {
				return &apierrors.NotFoundError{Kind: "location", Reference: args[1]}
			}
			cfg.Locations = append(cfg.Locations[:idx:idx], cfg.Locations[idx+1:]...)
			if err := apiClient.Services().Update(cmd.Context(), info.ID, cfg); err != nil {
				return err
			}
			rt.Printf("Location %s deleted from service %s\n", args[1], shortID(info.ID))
			return nil
		},
	}
}

func fetchService(ctx context.Context, apiClient *client.Client, ref string) (*client.ServiceInfo, error) {
	id, err := resolve.Resolve(ctx, resolve.KindService, ref, resolve.Services(apiClient))
	if err != nil {
		return nil, err
	}
	return apiClient.Services().Get(ctx, id)
}

func buildLocation(path, targetType, value, override404 string) (client.Location, error) {
	if !strings.HasPrefix(path, "/") {
		return client.Location{}, apierrors.Validation("location path %q must start with /", path)
	}
	location := client.Location{Path: path, Override404: override404}
	switch strings.ToLower(targetType) {
	case "instance", "inst", "service", "srv":
		group := value
		if group == "" {
			group = client.DefaultTargetGroup
		}
		location.Target = client.LocationTarget{Type: client.LocationTargetInstance, Group: group}
	case client.LocationTargetURL:
		if value == "" {
			return client.Location{}, apierrors.Validation("URL is required for url target type")
		}
		parsed, err := url.Parse(value)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return client.Location{}, apierrors.Validation("invalid target URL %q", value)
		}
		location.Target = client.LocationTarget{Type: client.LocationTargetURL, URL: value}
	default:
		return client.Location{}, apierrors.Validation("invalid target type %q: must be instance, service or url", targetType)
	}
	return location, nil
}

// parseTarget splits INSTANCE:PORT.
func parseTarget(value string) (string, uint16, error) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return "", 0, apierrors.Validation("invalid target %q: expected INSTANCE:PORT", value)
	}
	port, err := parsePort(value[idx+1:])
	if err != nil {
		return "", 0, err
	}
	return value[:idx], port, nil
}
