//go:build !windows

package main

func addPlatformHooks() {}
