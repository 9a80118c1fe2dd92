package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/embed"
	"github.com/zulandar/signalbox/internal/knowledge"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
)

func newAtomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atoms",
		Short: "Manage knowledge atoms",
	}
	cmd.AddCommand(newAtomsIngestCmd())
	return cmd
}

func newAtomsIngestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest <seed.yaml>...",
		Short: "Embed and store knowledge atoms from YAML seed files",
		Long: "Loads atoms from each seed file, embeds them with the configured embedder and\n" +
			"stores them on every reachable provider. Atoms whose body is already stored are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var atoms []models.KnowledgeAtom
			for _, path := range args {
				loaded, err := knowledge.LoadSeed(path)
				if err != nil {
					return err
				}
				atoms = append(atoms, loaded...)
			}
			return ingestAtoms(cmd.Context(), cmd.OutOrStdout(), a.pool, a.embedder, atoms)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func newCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Manage resolved maintenance cases",
	}
	cmd.AddCommand(newCasesIngestCmd())
	return cmd
}

func newCasesIngestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest <seed.yaml>...",
		Short: "Embed and store resolved maintenance cases from YAML seed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var all []models.MaintenanceCase
			for _, path := range args {
				loaded, err := cases.LoadSeed(path)
				if err != nil {
					return err
				}
				all = append(all, loaded...)
			}
			return ingestCases(cmd.Context(), cmd.OutOrStdout(), a.pool, a.embedder, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

// ingestAtoms embeds atoms and writes them to every provider holding a
// connection, so any provider can serve them after a failover.
func ingestAtoms(ctx context.Context, out io.Writer, pool *storage.Pool, e embed.Embedder, atoms []models.KnowledgeAtom) error {
	if e != nil {
		for i := range atoms {
			if len(atoms[i].Embedding) > 0 {
				continue
			}
			vec, err := e.Embed(ctx, atoms[i].Title+"\n"+atoms[i].Body)
			if err != nil {
				return fmt.Errorf("embed atom %q: %w", atoms[i].Title, err)
			}
			atoms[i].Embedding = vec
		}
	}

	return eachProvider(pool, func(name string, single *storage.Pool) error {
		store, err := knowledge.NewStore(single)
		if err != nil {
			return err
		}
		created := 0
		for _, atom := range atoms {
			_, isNew, err := store.Ingest(ctx, atom)
			if err != nil {
				return err
			}
			if isNew {
				created++
			}
		}
		fmt.Fprintf(out, "%s: %d atoms ingested, %d already present\n", name, created, len(atoms)-created)
		return nil
	})
}

// ingestCases embeds case problems and records them on every provider.
func ingestCases(ctx context.Context, out io.Writer, pool *storage.Pool, e embed.Embedder, all []models.MaintenanceCase) error {
	if e != nil {
		for i := range all {
			if len(all[i].Embedding) > 0 {
				continue
			}
			vec, err := e.Embed(ctx, all[i].Problem)
			if err != nil {
				return fmt.Errorf("embed case %q: %w", all[i].ID, err)
			}
			all[i].Embedding = vec
		}
	}

	return eachProvider(pool, func(name string, single *storage.Pool) error {
		store, err := cases.NewStore(single)
		if err != nil {
			return err
		}
		for _, c := range all {
			if _, err := store.Record(ctx, c); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%s: %d cases recorded\n", name, len(all))
		return nil
	})
}

// eachProvider runs fn against a single-provider pool for every connected
// provider of pool.
func eachProvider(pool *storage.Pool, fn func(name string, single *storage.Pool) error) error {
	reached := 0
	err := pool.Each(func(name string, gdb *gorm.DB) error {
		single, err := storage.New(storage.Options{
			Providers: []storage.ProviderSpec{{Name: name, DB: gdb}},
		})
		if err != nil {
			return err
		}
		reached++
		return fn(name, single)
	})
	if err != nil {
		return err
	}
	if reached == 0 {
		return storage.ErrStorageUnavailable
	}
	return nil
}
