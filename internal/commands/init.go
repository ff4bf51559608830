package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/piecebook/internal/config"
	"github.com/cleared-dev/piecebook/internal/id"
)

type initOptions struct {
	name           string
	fiscalYear     int
	tenantID       string
	organizationID string
	driver         string
	dsn            string
	plan           string
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a config, migrate the database and bootstrap a tenant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "company name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().IntVar(&opts.fiscalYear, "fiscal-year", time.Now().Year(), "fiscal year (January to December)")
	cmd.Flags().StringVar(&opts.tenantID, "tenant-id", "", "tenant id (generated when empty)")
	cmd.Flags().StringVar(&opts.organizationID, "organization-id", "", "organization id (generated when empty)")
	cmd.Flags().StringVar(&opts.driver, "driver", config.DriverSQLite, "database driver: sqlite, postgres or memory")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "database DSN or sqlite file (default piecebook.db)")
	cmd.Flags().StringVar(&opts.plan, "plan", "", "subscription plan (default STARTER)")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, opts initOptions) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	cfg := config.Default(opts.name, opts.fiscalYear)
	cfg.Tenant.ID = opts.tenantID
	if cfg.Tenant.ID == "" {
		cfg.Tenant.ID = id.New()
	}
	cfg.Tenant.OrganizationID = opts.organizationID
	if cfg.Tenant.OrganizationID == "" {
		cfg.Tenant.OrganizationID = id.New()
	}
	cfg.Database.Driver = opts.driver
	if opts.dsn != "" {
		cfg.Database.DSN = opts.dsn
	} else if opts.driver != config.DriverSQLite {
		cfg.Database.DSN = ""
	}
	if opts.plan != "" {
		cfg.Quota.Plan = opts.plan
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := filepath.Join(dir, config.FileName)
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	a, err := openApp(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.bootstrap(cmd.Context())
	if err != nil {
		return fmt.Errorf("bootstrapping tenant: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (tenant %s, fiscal year %d) at %s\n",
		tenant.CompanyName, tenant.ID, tenant.FiscalYear, dir)
	return nil
}
