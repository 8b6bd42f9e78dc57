//go:build !windows

package main

func setDPIAware() {}
