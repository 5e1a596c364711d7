//go:build !linux

package config

const defaultButtonSource = "hotkey"
