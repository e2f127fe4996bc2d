package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "serve", "jobs", "trace"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := resolveConfigPath("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("resolveConfigPath(explicit) = %q, want explicit.yaml", got)
	}

	t.Setenv("ORBITAL_CONFIG", "")
	if got := resolveConfigPath(""); got != "orbital.yaml" {
		t.Errorf("resolveConfigPath(default) = %q, want orbital.yaml", got)
	}

	t.Setenv("ORBITAL_CONFIG", "/etc/orbital/prod.yaml")
	if got := resolveConfigPath(""); got != "/etc/orbital/prod.yaml" {
		t.Errorf("resolveConfigPath(env) = %q, want /etc/orbital/prod.yaml", got)
	}
}

func TestJobsCmdRegistersSmokeSubcommand(t *testing.T) {
	cmd := buildJobsCmd()
	smoke, _, err := cmd.Find([]string{"smoke"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if smoke.Use != "smoke" {
		t.Fatalf("expected smoke subcommand, got %q", smoke.Use)
	}
}
