// Package cmd implements the cobra command tree for the unisrv CLI: login
// and session inspection, instances, services with their targets and
// locations, private networks, claimed hosts, configuration and shell
// completion.
package cmd
