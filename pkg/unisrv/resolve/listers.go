package resolve

import (
	"context"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

// Instances lists instances. Stopped instances are skipped unless
// includeStopped is set.
func Instances(c *client.Client, includeStopped bool) Lister {
	return ListerFunc(func(ctx context.Context) ([]Summary, error) {
		instances, err := c.Instances().List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Summary, 0, len(instances))
		for _, i := range instances {
			if !includeStopped && i.Stopped() {
				continue
			}
			out = append(out, Summary{ID: i.ID, Name: i.Name, Status: i.State})
		}
		return out, nil
	})
}

func Services(c *client.Client) Lister {
	return ListerFunc(func(ctx context.Context) ([]Summary, error) {
		services, err := c.Services().List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Summary, 0, len(services))
		for _, s := range services {
			out = append(out, Summary{ID: s.ID, Name: s.Name, Status: s.Type})
		}
		return out, nil
	})
}

func Networks(c *client.Client) Lister {
	return ListerFunc(func(ctx context.Context) ([]Summary, error) {
		networks, err := c.Networks().List(ctx, client.NetworkListOptions{})
		if err != nil {
			return nil, err
		}
		out := make([]Summary, 0, len(networks))
		for _, n := range networks {
			out = append(out, Summary{ID: n.ID, Name: n.Name})
		}
		return out, nil
	})
}

// Targets builds summaries for the targets of one service. Targets have no
// name and match by identifier only.
func Targets(targets []client.ServiceTarget) []Summary {
	out := make([]Summary, 0, len(targets))
	for _, t := range targets {
		out = append(out, Summary{ID: t.ID, Status: t.Group})
	}
	return out
}
