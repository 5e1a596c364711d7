package login

import (
	"path/filepath"
	"testing"
)

func TestCommandAbsolutizesPaths(t *testing.T) {
	exe, args, err := command([]string{"-config", "conf/talkbox.toml", "-button", "input", "-env", "/etc/talkbox.env"})
	if err != nil {
		t.Fatal(err)
	}
	if exe == "" {
		t.Fatal("empty executable")
	}
	want, _ := filepath.Abs("conf/talkbox.toml")
	if args[1] != want {
		t.Fatalf("config path = %q, want %q", args[1], want)
	}
	if args[2] != "-button" || args[3] != "input" {
		t.Fatalf("other flags changed: %q", args)
	}
	if args[5] != "/etc/talkbox.env" {
		t.Fatalf("absolute path changed: %q", args[5])
	}
}

func TestCommandTrailingFlag(t *testing.T) {
	_, args, err := command([]string{"-config"})
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 1 || args[0] != "-config" {
		t.Fatalf("args = %q", args)
	}
}
