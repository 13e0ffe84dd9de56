package cmd

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/resolve"
)

func NewNetworkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "network",
		Aliases: []string{"net", "networks"},
		Short:   "Manage private networks",
		Args:    cobra.NoArgs,
		RunE:    listNetworks,
	}
	cmd.AddCommand(
		newNetworkNewCommand(),
		newNetworkShowCommand(),
		newNetworkDeleteCommand(),
		newNetworkListCommand(),
	)
	return cmd
}

func newNetworkListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List networks",
		Args:    cobra.NoArgs,
		RunE:    listNetworks,
	}
}

func listNetworks(cmd *cobra.Command, _ []string) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, _, err := buildClient(rt)
	if err != nil {
		return err
	}
	networks, err := apiClient.Networks().List(cmd.Context(), client.NetworkListOptions{IncludeInstanceCount: true})
	if err != nil {
		return err
	}
	return rt.Render(networks, func(w io.Writer) {
		if len(networks) == 0 {
			_, _ = fmt.Fprintln(w, "No networks found")
			return
		}
		output.WriteNetworkTable(w, networks)
	})
}

func newNetworkNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "new NAME [CIDR]",
		Aliases: []string{"create"},
		Short:   "Create a network (default CIDR " + client.DefaultNetworkCIDR + ")",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			req := client.NetworkRequest{Name: strings.TrimSpace(args[0])}
			if req.Name == "" {
				return apierrors.Validation("network name must not be empty")
			}
			if len(args) > 1 {
				prefix, err := netip.ParsePrefix(args[1])
				if err != nil || !prefix.Addr().Is4() {
					return apierrors.Validation("invalid IPv4 CIDR %q", args[1])
				}
				req.IPv4CIDR = prefix.Masked().String()
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			network, err := apiClient.Networks().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return rt.Render(network, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, output.Success(fmt.Sprintf("Network %s (%s) created with ID %s", network.Name, network.IPv4CIDR, network.ID)))
			})
		},
	}
}

func newNetworkShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show NETWORK",
		Aliases: []string{"get"},
		Short:   "Show a network and its attached instances",
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
			id, err := resolve.Resolve(cmd.Context(), resolve.KindNetwork, args[0], resolve.Networks(apiClient))
			if err != nil {
				return err
			}
			detail, err := apiClient.Networks().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return rt.Render(detail, func(w io.Writer) {
				output.WriteNetworkDetail(w, detail)
			})
		},
	}
}

func newNetworkDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete NETWORK",
		Aliases: []string{"rm"},
		Short:   "Delete a network",
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
			id, err := resolve.Resolve(cmd.Context(), resolve.KindNetwork, args[0], resolve.Networks(apiClient))
			if err != nil {
				return err
			}
			if err := apiClient.Networks().Delete(cmd.Context(), id); err != nil {
				return err
			}
			rt.Printf("Network %s deleted\n", id)
			return nil
		},
	}
}

// parseNetworkFlag splits "[ip]@network" into its parts. A value without
// "@" names the network only.
func parseNetworkFlag(value string) (ip, network string, err error) {
	ip, network, found := strings.Cut(value, "@")
	if !found {
		ip, network = "", value
	}
	network = strings.TrimSpace(network)
	if network == "" {
		return "", "", apierrors.Validation("invalid network %q: expected [IP]@NETWORK", value)
	}
	return strings.TrimSpace(ip), network, nil
}

// resolveNetworkAttachment resolves the network of a --network value and
// picks the instance address, assigning the next free one when none is given.
func resolveNetworkAttachment(ctx context.Context, apiClient *client.Client, value string) (*client.InstanceNetwork, error) {
	ip, ref, err := parseNetworkFlag(value)
	if err != nil {
		return nil, err
	}
	id, err := resolve.Resolve(ctx, resolve.KindNetwork, ref, resolve.Networks(apiClient))
	if err != nil {
		return nil, err
	}
	detail, err := apiClient.Networks().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prefix, err := netip.ParsePrefix(detail.IPv4CIDR)
	if err != nil {
		return nil, fmt.Errorf("network %s has invalid CIDR %q: %w", detail.Name, detail.IPv4CIDR, err)
	}

	if ip == "" {
		used := make([]string, 0, len(detail.Instances))
		for _, i := range detail.Instances {
			used = append(used, i.InternalIP)
		}
		next, err := nextFreeIP(prefix, used)
		if err != nil {
			return nil, err
		}
		return &client.InstanceNetwork{NetworkID: id, InstanceIP: next.String()}, nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return nil, apierrors.Validation("invalid instance IP %q", ip)
	}
	if !prefix.Contains(addr) {
		return nil, apierrors.Validation("IP %s is outside network %s (%s)", addr, detail.Name, prefix)
	}
	for _, i := range detail.Instances {
		if i.InternalIP == addr.String() {
			return nil, apierrors.Validation("IP %s is already used by instance %s", addr, shortID(i.ID))
		}
	}
	return &client.InstanceNetwork{NetworkID: id, InstanceIP: addr.String()}, nil
}

// nextFreeIP returns the lowest address in prefix that is not in use. The
// network address, the first host address (gateway) and the broadcast
// address are never handed out.
func nextFreeIP(prefix netip.Prefix, used []string) (netip.Addr, error) {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() || prefix.Bits() > 30 {
		return netip.Addr{}, apierrors.Validation("network %s has no assignable addresses", prefix)
	}
	taken := make(map[netip.Addr]struct{}, len(used))
	for _, u := range used {
		if addr, err := netip.ParseAddr(u); err == nil {
			taken[addr] = struct{}{}
		}
	}
	gateway := prefix.Addr().Next()
	for addr := gateway.Next(); prefix.Contains(addr); addr = addr.Next() {
		if !prefix.Contains(addr.Next()) {
			// broadcast
			break
		}
		if _, ok := taken[addr]; !ok {
			return addr, nil
		}
	}
	return netip.Addr{}, apierrors.Validation("network %s has no free addresses", prefix)
}
