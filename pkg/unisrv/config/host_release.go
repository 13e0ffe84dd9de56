//go:build !dev

package config

const DefaultAPIHost = "https://api.unisrv.io"
