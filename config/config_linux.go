//go:build linux

package config

const defaultButtonSource = "input"
