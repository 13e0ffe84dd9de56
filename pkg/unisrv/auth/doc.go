// Package auth keeps the unisrv login session in the OS keyring and hands out
// access tokens, refreshing them once per invocation when they expire.
package auth
