//go:build dev

package config

const DefaultAPIHost = "http://localhost:8080"
