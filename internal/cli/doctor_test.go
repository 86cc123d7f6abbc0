package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func checkByName(t *testing.T, checks []doctorCheck, name string) doctorCheck {
	t.Helper()
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("missing check %q in %v", name, checks)
	return doctorCheck{}
}

func isolateDoctorConfig(t *testing.T) {
	t.Helper()
	t.Setenv("LINEBRIDGE_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("LINEBRIDGE_STORE_PATH", filepath.Join(t.TempDir(), "exchanges.db"))
}

func TestDoctorFlagsMissingCredentials(t *testing.T) {
	isolateDoctorConfig(t)
	t.Setenv("LINEBRIDGE_LINE_ACCESS_TOKEN", "")
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_SECRET", "")
	t.Setenv("LINEBRIDGE_DIRECTLINE_TOKEN_URL", "")

	checks := runDoctorChecks(false)

	if c := checkByName(t, checks, "line access token"); c.Status != doctorFail {
		t.Fatalf("access token check: %+v", c)
	}
	if c := checkByName(t, checks, "line channel secret"); c.Status != doctorWarn {
		t.Fatalf("channel secret check: %+v", c)
	}
	if c := checkByName(t, checks, "directline token url"); c.Status != doctorFail {
		t.Fatalf("token url check: %+v", c)
	}
}

func TestDoctorPassesWithFullConfig(t *testing.T) {
	isolateDoctorConfig(t)
	t.Setenv("LINEBRIDGE_LINE_ACCESS_TOKEN", "tok")
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_SECRET", "secret")
	t.Setenv("LINEBRIDGE_DIRECTLINE_TOKEN_URL", "https://example.invalid/token")

	checks := runDoctorChecks(false)
	for _, c := range checks {
		if c.Status == doctorFail {
			t.Fatalf("unexpected failure: %+v", c)
		}
	}
	if c := checkByName(t, checks, "exchange log"); c.Status != doctorPass {
		t.Fatalf("exchange log check: %+v", c)
	}
}

func TestDoctorProbeHitsTokenEndpoint(t *testing.T) {
	isolateDoctorConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-1"})
	}))
	defer srv.Close()

	t.Setenv("LINEBRIDGE_LINE_ACCESS_TOKEN", "tok")
	t.Setenv("LINEBRIDGE_LINE_CHANNEL_SECRET", "secret")
	t.Setenv("LINEBRIDGE_DIRECTLINE_TOKEN_URL", srv.URL)

	checks := runDoctorChecks(true)
	if c := checkByName(t, checks, "token endpoint probe"); c.Status != doctorPass {
		t.Fatalf("probe check: %+v", c)
	}
}
