package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and migrate every storage provider",
		Long:  "Creates MySQL databases that do not exist yet, then migrates all tables on every configured provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd.OutOrStdout(), cmd.ErrOrStderr(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func runDBInit(out, logOut io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %d storage providers from %s\n", len(cfg.Storage.Providers), configPath)

	for _, p := range cfg.Storage.Providers {
		if p.Driver != "mysql" {
			continue
		}
		adminDB, err := db.ConnectAdmin(p)
		if err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
		if err := db.CreateDatabase(adminDB, p.Database); err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
		fmt.Fprintf(out, "Database %s ready on %s:%d\n", p.Database, p.Host, p.Port)
	}

	a, err := openApp(configPath, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	migrated := 0
	err = a.pool.Each(func(name string, gdb *gorm.DB) error {
		if err := db.AutoMigrate(gdb); err != nil {
			return err
		}
		migrated++
		fmt.Fprintf(out, "Migrated %d tables on %s\n", len(db.AllModels()), name)
		return nil
	})
	if err != nil {
		return err
	}
	if migrated < len(cfg.Storage.Providers) {
		fmt.Fprintf(out, "%d of %d providers unreachable; run sb health for details\n",
			len(cfg.Storage.Providers)-migrated, len(cfg.Storage.Providers))
	}

	fmt.Fprintln(out, "\nSignalbox storage initialized.")
	return nil
}
