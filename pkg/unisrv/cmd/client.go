package cmd

import (
	"github.com/unisrv/unisrv-cli/pkg/unisrv/auth"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/config"
	"github.com/unisrv/unisrv-cli/pkg/version"
)

// buildClient wires the API client and the session manager together. The
// manager hands out tokens to the client and uses the client to refresh.
func buildClient(rt *runtimeState) (*client.Client, *auth.Manager, error) {
	host, err := config.ResolveAPIHost(rt.apiHost, rt.cfg)
	if err != nil {
		return nil, nil, err
	}
	manager := auth.NewManager(rt.Store(), rt.Logger())

	options := []client.Option{
		client.WithServer(host),
		client.WithAuthenticator(manager),
		client.WithUserAgent(version.UserAgent()),
		client.WithLogger(rt.Logger()),
	}
	if timeout := rt.Timeout(); timeout > 0 {
		options = append(options, client.WithTimeout(timeout))
	}
	if rt.cfg != nil && (rt.cfg.Settings.CAFile != "" || rt.cfg.Settings.Insecure) {
		options = append(options, client.WithTLSConfig(rt.cfg.Settings.CAFile, rt.cfg.Settings.Insecure))
	}
	apiClient, err := client.New(options...)
	if err != nil {
		return nil, nil, err
	}
	manager.Refresher = apiClient
	rt.Logger().Debugw("Using API host", "host", host)
	return apiClient, manager, nil
}
