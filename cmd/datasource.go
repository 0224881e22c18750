package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/docshape-cli/internal/datasource"
	"github.com/KaramelBytes/docshape-cli/internal/store"
)

var (
	srcID       string
	srcName     string
	srcType     string
	srcHost     string
	srcPort     int
	srcDatabase string
	srcUser     string
	srcPassword string
	srcInactive bool
)

var datasourceCmd = &cobra.Command{
	Use:     "datasource",
	Aliases: []string{"source"},
	Short:   "Manage data source connections",
}

var datasourceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update a data source",
	Example: `  docshape datasource add --name audit-pg --type postgresql --host db.local --database audit --user report
  docshape datasource add --id local --name local --type sqlite --database ./audit.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		src := &store.DataSource{ID: srcID}
		if src.ID != "" {
			if existing, err := s.GetDataSource(ctx, src.ID); err == nil {
				src = existing
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		} else {
			src.ID = uuid.NewString()
		}
		src.Name = srcName
		src.Type = srcType
		src.Host = srcHost
		src.Port = srcPort
		src.Database = srcDatabase
		src.Username = srcUser
		if cmd.Flags().Changed("password") || src.Password == "" {
			src.Password = srcPassword
		}
		src.Active = !srcInactive
		if err := s.PutDataSource(ctx, src); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Data source saved: %s (%s)\n", src.Name, src.ID)
		return nil
	},
}

var datasourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		list, err := s.ListDataSources(context.Background())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		def := defaultSource(c)
		if len(list) == 0 && def == nil {
			fmt.Fprintln(out, "(no data sources)")
			return nil
		}
		t := newTable(out, "ID", "Name", "Type", "Connection", "Active")
		for _, src := range list {
			t.AppendRow([]any{src.ID, src.Name, src.Type, datasource.Describe(src), src.Active})
		}
		if def != nil {
			t.AppendRow([]any{def.ID, "(config)", def.Type, datasource.Describe(*def), true})
		}
		t.Render()
		return nil
	},
}

var datasourceTestCmd = &cobra.Command{
	Use:   "test <id|name>",
	Short: "Check that a data source accepts connections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c, err := config()
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		src, err := findSource(ctx, s, args[0])
		if err != nil {
			if def := defaultSource(c); def != nil && args[0] == def.ID {
				src = def
			} else {
				return err
			}
		}
		if err := datasource.NewSQLExecutor(c.QueryTimeout(), logger).Ping(ctx, *src); err != nil {
			return fmt.Errorf("connect %s: %w", datasource.Describe(*src), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Connected: %s\n", datasource.Describe(*src))
		return nil
	},
}

var datasourceRmCmd = &cobra.Command{
	Use:   "rm <id|name>",
	Short: "Delete a data source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		src, err := findSource(ctx, s, args[0])
		if err != nil {
			return err
		}
		if err := s.DeleteDataSource(ctx, src.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Data source deleted: %s\n", src.Name)
		return nil
	},
}

func findSource(ctx context.Context, repo store.DataSourceRepository, key string) (*store.DataSource, error) {
	src, err := repo.GetDataSource(ctx, key)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	list, err := repo.ListDataSources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Name == key {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("data source %s: %w", key, store.ErrNotFound)
}

func init() {
	rootCmd.AddCommand(datasourceCmd)
	datasourceCmd.AddCommand(datasourceAddCmd, datasourceListCmd, datasourceTestCmd, datasourceRmCmd)

	f := datasourceAddCmd.Flags()
	f.StringVar(&srcID, "id", "", "data source id (default: generated)")
	f.StringVar(&srcName, "name", "", "display name")
	f.StringVar(&srcType, "type", store.SourcePostgres, "source type: postgresql|sqlite")
	f.StringVar(&srcHost, "host", "", "database host")
	f.IntVar(&srcPort, "port", 0, "database port")
	f.StringVar(&srcDatabase, "database", "", "database name (sqlite: file path)")
	f.StringVar(&srcUser, "user", "", "username")
	f.StringVar(&srcPassword, "password", "", "password")
	f.BoolVar(&srcInactive, "inactive", false, "store the source as inactive")
	_ = datasourceAddCmd.MarkFlagRequired("name")
}
