package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

func WriteInstanceTable(w io.Writer, instances []client.Instance) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tIMAGE\tSTATE\tCREATED")
	for _, i := range instances {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", i.ID, dash(i.Name), i.Configuration.ContainerImage, i.State, formatTime(i.CreatedAt.Time))
	}
	_ = tw.Flush()
}

func WriteInstanceDetail(w io.Writer, i *client.InstanceDetail) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", i.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", dash(i.Name))
	_, _ = fmt.Fprintf(tw, "State:\t%s\n", i.State)
	if i.ExitCode != nil {
		_, _ = fmt.Fprintf(tw, "Exit code:\t%d\n", *i.ExitCode)
	}
	if i.ExitReason != "" {
		_, _ = fmt.Fprintf(tw, "Exit reason:\t%s\n", i.ExitReason)
	}
	_, _ = fmt.Fprintf(tw, "Image:\t%s\n", i.Configuration.ContainerImage)
	if len(i.Configuration.Args) > 0 {
		_, _ = fmt.Fprintf(tw, "Args:\t%s\n", strings.Join(i.Configuration.Args, " "))
	}
	for _, k := range sortedKeys(i.Configuration.Env) {
		_, _ = fmt.Fprintf(tw, "Env:\t%s=%s\n", k, i.Configuration.Env[k])
	}
	if i.NetworkID != nil {
		_, _ = fmt.Fprintf(tw, "Network:\t%s (%s)\n", *i.NetworkID, dash(i.NetworkIP))
	}
	_, _ = fmt.Fprintf(tw, "Created:\t%s\n", formatTime(i.CreatedAt.Time))
	_, _ = fmt.Fprintf(tw, "Updated:\t%s\n", formatTime(i.UpdatedAt.Time))
	_ = tw.Flush()

	if len(i.ServiceTargets) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, Title("Service targets"))
	tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TARGET\tSERVICE\tTYPE\tPORT")
	for _, t := range i.ServiceTargets {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.ServiceName, t.ServiceType, t.InstancePort)
	}
	_ = tw.Flush()
}

func WriteServiceTable(w io.Writer, services []client.Service) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTYPE")
	for _, s := range services {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Type)
	}
	_ = tw.Flush()
}

func WriteServiceDetail(w io.Writer, s *client.ServiceInfo) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	_, _ = fmt.Fprintf(tw, "Type:\t%s\n", s.Type)
	_, _ = fmt.Fprintf(tw, "Allow HTTP:\t%t\n", s.Configuration.AllowHTTP)
	_, _ = fmt.Fprintf(tw, "Created:\t%s\n", formatTime(s.CreatedAt.Time))
	_, _ = fmt.Fprintf(tw, "Updated:\t%s\n", formatTime(s.UpdatedAt.Time))
	_ = tw.Flush()

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, Title("Locations"))
	WriteLocationTable(w, s.Configuration.Locations)

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, Title("Targets"))
	WriteTargetTable(w, s.Targets)

	if len(s.Providers) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, Title("Providers"))
		tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNODE\tADDRESS\tCREATED")
		for _, p := range s.Providers {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.NodeID, p.RouteAddress, formatTime(p.CreatedAt.Time))
		}
		_ = tw.Flush()
	}
}

func WriteLocationTable(w io.Writer, locations []client.Location) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tTARGET\tOVERRIDE_404")
	for _, l := range locations {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Path, l.Target.String(), dash(l.Override404))
	}
	_ = tw.Flush()
}

func WriteTargetTable(w io.Writer, targets []client.ServiceTarget) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tINSTANCE\tPORT\tGROUP\tCREATED")
	for _, t := range targets {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.InstanceID, t.InstancePort, dash(t.Group), formatTime(t.CreatedAt.Time))
	}
	_ = tw.Flush()
}

func WriteNetworkTable(w io.Writer, networks []client.Network) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCIDR\tINSTANCES")
	for _, n := range networks {
		count := "-"
		if n.InstanceCount != nil {
			count = fmt.Sprintf("%d", *n.InstanceCount)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Name, n.IPv4CIDR, count)
	}
	_ = tw.Flush()
}

func WriteNetworkDetail(w io.Writer, n *client.NetworkDetail) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", n.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", n.Name)
	_, _ = fmt.Fprintf(tw, "CIDR:\t%s\n", n.IPv4CIDR)
	_, _ = fmt.Fprintf(tw, "Created:\t%s\n", formatTime(n.CreatedAt.Time))
	_ = tw.Flush()

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, Title("Instances"))
	if len(n.Instances) == 0 {
		_, _ = fmt.Fprintln(w, "No instances attached")
		return
	}
	tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INSTANCE\tIP")
	for _, i := range n.Instances {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", i.ID, i.InternalIP)
	}
	_ = tw.Flush()
}

func WriteHostTable(w io.Writer, hosts []client.Host) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tHOST\tSERVICE\tCERTIFICATE\tVALID_UNTIL")
	for _, h := range hosts {
		service := "-"
		if h.ServiceID != nil {
			service = h.ServiceID.String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.ID, h.Host, service, dash(h.CertificateType), formatTime(h.CertificateValidUntil.Time))
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
