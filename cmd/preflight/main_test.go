package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCheck(env map[string]string) (*report, string) {
	var out bytes.Buffer
	r := &report{out: &out, errOut: &out}
	check(r, func(k string) string { return env[k] })
	return r, out.String()
}

func TestCheck_MinimalProductionEnvPasses(t *testing.T) {
	r, out := runCheck(map[string]string{
		"JWT_SECRET":      strings.Repeat("s", 40),
		"ADMIN_API_KEYS":  "adm1,adm2",
		"DATABASE_URL":    "postgres://u:p@db:5432/net?sslmode=disable",
		"REDIS_URL":       "redis://cache:6379/0",
		"ALLOWED_ORIGINS": "https://dash.example.com",
	})
	if r.failed {
		t.Fatalf("unexpected failure:\n%s", out)
	}
}

func TestCheck_Failures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"no secret", map[string]string{"ADMIN_API_KEYS": "a"}, "JWT_SECRET is empty"},
		{"no admin", map[string]string{"JWT_SECRET": strings.Repeat("s", 32)}, "ADMIN_API_KEYS is empty"},
		{"bad db scheme", map[string]string{
			"JWT_SECRET": strings.Repeat("s", 32), "ADMIN_API_KEYS": "a", "DATABASE_URL": "mysql://h/db",
		}, "DATABASE_URL scheme"},
		{"bad millis", map[string]string{
			"JWT_SECRET": strings.Repeat("s", 32), "ADMIN_API_KEYS": "a", "MONITOR_INTERVAL_MS": "soon",
		}, "MONITOR_INTERVAL_MS must be"},
	}
	for _, c := range cases {
		r, out := runCheck(c.env)
		if !r.failed {
			t.Fatalf("%s: expected failure:\n%s", c.name, out)
		}
		if !strings.Contains(out, c.want) {
			t.Fatalf("%s: output missing %q:\n%s", c.name, c.want, out)
		}
	}
}
