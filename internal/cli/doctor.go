package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linebridge/linebridge/internal/config"
	"github.com/linebridge/linebridge/internal/directline"
	"github.com/spf13/cobra"
)

var doctorProbe bool

type doctorStatus string

const (
	doctorPass doctorStatus = "PASS"
	doctorWarn doctorStatus = "WARN"
	doctorFail doctorStatus = "FAIL"
)

type doctorCheck struct {
	Name    string
	Status  doctorStatus
	Message string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run config and connectivity diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctorChecks(doctorProbe)

		failures := 0
		for _, check := range checks {
			if check.Status == doctorFail {
				failures++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", check.Status, check.Name, check.Message)
		}
		if failures > 0 {
			return fmt.Errorf("doctor found %d failing check(s)", failures)
		}
		return nil
	},
}

func runDoctorChecks(probe bool) []doctorCheck {
	var checks []doctorCheck

	cfg, err := config.Load()
	if err != nil {
		return append(checks, doctorCheck{"config", doctorFail, err.Error()})
	}
	checks = append(checks, doctorCheck{"config", doctorPass, "loaded"})

	if cfg.Line.AccessToken == "" {
		checks = append(checks, doctorCheck{"line access token", doctorFail, "LINEBRIDGE_LINE_ACCESS_TOKEN not set"})
	} else {
		checks = append(checks, doctorCheck{"line access token", doctorPass, "set"})
	}
	if cfg.Line.ChannelSecret == "" {
		checks = append(checks, doctorCheck{"line channel secret", doctorWarn, "not set, webhook signatures will not be verified"})
	} else {
		checks = append(checks, doctorCheck{"line channel secret", doctorPass, "set"})
	}
	if cfg.DirectLine.TokenURL == "" {
		checks = append(checks, doctorCheck{"directline token url", doctorFail, "LINEBRIDGE_DIRECTLINE_TOKEN_URL not set"})
	} else {
		checks = append(checks, doctorCheck{"directline token url", doctorPass, cfg.DirectLine.TokenURL})
		if probe {
			checks = append(checks, probeTokenEndpoint(cfg))
		}
	}

	if cfg.Store.Disabled {
		checks = append(checks, doctorCheck{"exchange log", doctorWarn, "disabled"})
	} else if err := os.MkdirAll(filepath.Dir(cfg.StorePath()), 0o755); err != nil {
		checks = append(checks, doctorCheck{"exchange log", doctorFail, err.Error()})
	} else {
		checks = append(checks, doctorCheck{"exchange log", doctorPass, cfg.StorePath()})
	}
	return checks
}

func probeTokenEndpoint(cfg *config.Config) doctorCheck {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := directline.NewClient(cfg.DirectLine.TokenURL, cfg.DirectLine.BaseURL, nil)
	if _, err := client.AcquireToken(ctx); err != nil {
		return doctorCheck{"token endpoint probe", doctorFail, err.Error()}
	}
	return doctorCheck{"token endpoint probe", doctorPass, "token acquired"}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "Probe the Direct Line token endpoint with a live request")
	rootCmd.AddCommand(doctorCmd)
}
