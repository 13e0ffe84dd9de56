package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/config"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/output"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/resolve"
)

// Edge endpoints custom domains point at.
const (
	edgeIPv4 = "70.34.214.14"
	edgeIPv6 = "2a05:f480:2000:16fd::1"
	edgeHost = "srvedge.net"
)

func NewHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "host",
		Aliases: []string{"hosts"},
		Short:   "Manage claimed domains and their certificates",
		Args:    cobra.NoArgs,
		RunE:    listHosts,
	}
	cmd.AddCommand(
		newHostListCommand(),
		newHostClaimCommand(),
		newHostDeleteCommand(),
		newHostCertCommand(),
	)
	return cmd
}

func newHostListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List claimed hosts",
		Args:    cobra.NoArgs,
		RunE:    listHosts,
	}
}

func listHosts(cmd *cobra.Command, _ []string) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, _, err := buildClient(rt)
	if err != nil {
		return err
	}
	hosts, err := apiClient.Hosts().List(cmd.Context())
	if err != nil {
		return err
	}
	return rt.Render(hosts, func(w io.Writer) {
		if len(hosts) == 0 {
			_, _ = fmt.Fprintln(w, "No hosts claimed")
			return
		}
		output.WriteHostTable(w, hosts)
	})
}

func newHostClaimCommand() *cobra.Command {
	var withCert bool
	cmd := &cobra.Command{
		Use:   "claim DOMAIN",
		Short: "Claim a domain for use by services",
		Long:  "Claim a domain. A name without a dot is completed to <name>." + config.HostSuffix + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			domain := config.QualifyDomain(strings.ToLower(strings.TrimSpace(args[0])))
			if domain == "."+config.HostSuffix {
				return apierrors.Validation("domain must not be empty")
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			host, err := apiClient.Hosts().Claim(cmd.Context(), domain)
			if err != nil {
				return err
			}
			if err := rt.Render(host, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, output.Success(fmt.Sprintf("Host %s claimed successfully (id: %s)", host.Host, shortID(host.ID))))
			}); err != nil {
				return err
			}
			if !withCert {
				rt.Printf("%s\n", output.Hint("Request a TLS certificate with: unisrv host cert "+host.Host))
				return nil
			}
			return requestCertificate(cmd.Context(), rt, apiClient, host, true, false)
		},
	}
	cmd.Flags().BoolVar(&withCert, "cert", false, "Request a TLS certificate right after claiming")
	return cmd
}

func newHostDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete HOST",
		Aliases: []string{"rm"},
		Short:   "Release a claimed host",
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
			hosts, err := apiClient.Hosts().List(cmd.Context())
			if err != nil {
				return err
			}
			host, err := matchHost(args[0], hosts)
			if err != nil {
				return err
			}
			if err := apiClient.Hosts().Delete(cmd.Context(), host.ID); err != nil {
				return err
			}
			rt.Printf("Host %s deleted\n", host.Host)
			return nil
		},
	}
}

func newHostCertCommand() *cobra.Command {
	var (
		dnsReady bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "cert HOST",
		Short: "Request a TLS certificate for a host",
		Long: `Request a TLS certificate for a host.

Custom domains must point at the edge before a certificate can be issued.
Without --dns-ready the required DNS records are printed and nothing is requested.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, _, err := buildClient(rt)
			if err != nil {
				return err
			}
			hosts, err := apiClient.Hosts().List(cmd.Context())
			if err != nil {
				return err
			}
			host, err := matchHost(args[0], hosts)
			if err != nil {
				return err
			}
			return requestCertificate(cmd.Context(), rt, apiClient, host, dnsReady, force)
		},
	}
	cmd.Flags().BoolVar(&dnsReady, "dns-ready", false, "Confirm that DNS records point at the edge")
	cmd.Flags().BoolVar(&force, "force", false, "Request a new certificate even if one exists")
	return cmd
}

func requestCertificate(ctx context.Context, rt *runtimeState, apiClient *client.Client, host *client.Host, dnsReady, force bool) error {
	if host.CertificateType != "" && !force {
		rt.Printf("%s already has a certificate (type: %s); use --force to request a new one\n", host.Host, host.CertificateType)
		return nil
	}
	managed := strings.HasSuffix(host.Host, "."+config.HostSuffix)
	if !managed && !dnsReady {
		writeDNSGuidance(rt.ErrWriter(), host.Host)
		_, _ = fmt.Fprintf(rt.ErrWriter(), "\nOnce the records are in place run: unisrv host cert %s --dns-ready\n", host.Host)
		return nil
	}
	updated, err := apiClient.Hosts().RequestCertificate(ctx, host.ID)
	if err != nil {
		return err
	}
	return rt.Render(updated, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, output.Success(fmt.Sprintf("Certificate requested for %s", host.Host)))
	})
}

// writeDNSGuidance prints the records a custom domain needs. Apex domains
// cannot carry a CNAME, so they get the flattening hint instead.
func writeDNSGuidance(w io.Writer, domain string) {
	subdomain := strings.Count(domain, ".") > 1
	_, _ = fmt.Fprintln(w, output.Title("TLS certificate setup for "+domain))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  Before provisioning a certificate, point your DNS to the edge servers:")
	_, _ = fmt.Fprintln(w)
	if subdomain {
		_, _ = fmt.Fprintf(w, "  (recommended) Create a CNAME record pointing to %s\n\n", edgeHost)
		_, _ = fmt.Fprintln(w, "  Or, set explicit address records:")
	} else {
		_, _ = fmt.Fprintln(w, "  (recommended) If your DNS provider supports it, create an")
		_, _ = fmt.Fprintf(w, "  ALIAS / CNAME flattening record pointing to %s\n\n", edgeHost)
		_, _ = fmt.Fprintln(w, "  Otherwise, set address records:")
	}
	_, _ = fmt.Fprintf(w, "    A     %s  ->  %s\n", domain, edgeIPv4)
	_, _ = fmt.Fprintf(w, "    AAAA  %s  ->  %s\n", domain, edgeIPv6)
}

// matchHost finds the host referenced by ref. A reference that matches no
// identifier or domain is retried as a domain, completed the way claim
// completes it, so "blog" finds blog.unisrv.dev.
func matchHost(ref string, hosts []client.Host) (*client.Host, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apierrors.Validation("host reference must not be empty")
	}
	summaries := make([]resolve.Summary, 0, len(hosts))
	for _, h := range hosts {
		summaries = append(summaries, resolve.Summary{ID: h.ID, Name: h.Host})
	}
	id, err := resolve.Match(resolve.KindHost, ref, summaries)
	if errors.Is(err, apierrors.ErrNotFound) {
		if domain := config.QualifyDomain(strings.ToLower(ref)); domain != ref {
			id, err = resolve.Match(resolve.KindHost, domain, summaries)
		}
	}
	if err != nil {
		return nil, err
	}
	for i := range hosts {
		if hosts[i].ID == id {
			return &hosts[i], nil
		}
	}
	return nil, &apierrors.NotFoundError{Kind: string(resolve.KindHost), Reference: ref}
}
