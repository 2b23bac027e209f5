// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type report struct {
	out, errOut io.Writer
	failed      bool
}

func (r *report) fail(msg string) { fmt.Fprintln(r.errOut, "✖", msg); r.failed = true }
func (r *report) warn(msg string) { fmt.Fprintln(r.errOut, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }

func main() {
	_ = godotenv.Load()
	r := &report{out: os.Stdout, errOut: os.Stderr}
	check(r, os.Getenv)
	if r.failed {
		os.Exit(1)
	}
	r.ok("preflight passed")
}

func check(r *report, getenv func(string) string) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	secret := get("JWT_SECRET")
	switch {
	case secret == "":
		r.fail("JWT_SECRET is empty (tokens are signed with a random key and die on restart).")
	case len(secret) < 32:
		r.warn("JWT_SECRET is shorter than 32 characters.")
	default:
		r.ok("JWT_SECRET present")
	}

	admin := get("ADMIN_API_KEYS")
	if admin == "" {
		r.fail("ADMIN_API_KEYS is empty (user listing is open to everyone).")
	} else if strings.Contains(admin, " ") {
		r.warn("ADMIN_API_KEYS contains spaces; use comma-separated with no spaces, e.g. key1,key2")
	} else {
		r.ok("ADMIN_API_KEYS present")
	}

	if addr := get("API_ADDR"); addr == "" {
		r.warn("API_ADDR is empty; default 127.0.0.1:8080 will be used.")
	} else {
		r.ok("API_ADDR=" + addr)
	}

	checkURL(r, get("DATABASE_URL"), "DATABASE_URL", []string{"postgres", "postgresql"},
		"DATABASE_URL empty; API will use in-memory stores (nothing survives a restart).")
	checkURL(r, get("REDIS_URL"), "REDIS_URL", []string{"redis", "rediss"},
		"REDIS_URL empty; rate limits are per process.")

	if allowed := get("ALLOWED_ORIGINS"); allowed == "" {
		r.warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		r.ok("ALLOWED_ORIGINS=" + allowed)
	}

	for _, k := range []string{"SPEEDTEST_TIMEOUT_MS", "SPEEDTEST_MEASURE_TIMEOUT_MS", "MONITOR_INTERVAL_MS", "ALERT_COOLDOWN_MS"} {
		v := get(k)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			r.fail(k + " must be a non-negative integer (milliseconds).")
		}
	}
	if get("SPEEDTEST_TIMEOUT_MS") == "0" {
		r.warn("SPEEDTEST_TIMEOUT_MS=0 is ignored; the 3000 ms default applies.")
	}

	if get("MONITOR_INTERVAL_MS") != "" && get("MONITOR_INTERVAL_MS") != "0" && get("SLACK_WEBHOOK_URL") == "" {
		r.warn("monitor enabled without SLACK_WEBHOOK_URL; tier changes are only logged.")
	}
}

func checkURL(r *report, v, name string, schemes []string, emptyMsg string) {
	if v == "" {
		r.warn(emptyMsg)
		return
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		r.fail(name + " is not a valid URL.")
		return
	}
	for _, s := range schemes {
		if u.Scheme == s {
			r.ok(name + " present")
			return
		}
	}
	r.fail(fmt.Sprintf("%s scheme %q not one of %v", name, u.Scheme, schemes))
}
