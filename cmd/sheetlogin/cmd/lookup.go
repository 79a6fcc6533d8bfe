package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gaepo/sheetlogin/internal/adapter/outbound/memory"
	"github.com/gaepo/sheetlogin/internal/domain/session"
	"github.com/gaepo/sheetlogin/internal/domain/table"
	"github.com/gaepo/sheetlogin/internal/service"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup --id ID --name NAME",
	Short: "Look up one student's row from the command line",
	Long: `Run the same exact ID and name match as the login page and print the
matched row. Useful for answering "why can't I log in" questions.

Examples:
  sheetlogin lookup --id 20201 --name 김개포
  sheetlogin lookup --id 20201 --name 김개포 -o json`,
	RunE: runLookup,
}

var (
	lookupID     string
	lookupName   string
	lookupOutput string
	lookupSource string
)

func init() {
	lookupCmd.Flags().StringVar(&lookupID, "id", "", "Student ID (compared exactly)")
	lookupCmd.Flags().StringVar(&lookupName, "name", "", "Student name (compared exactly)")
	lookupCmd.Flags().StringVarP(&lookupOutput, "output", "o", "yaml", "Output format: yaml or json")
	lookupCmd.Flags().StringVar(&lookupSource, "source", "", "Override source.location (sheet URL, CSV URL or CSV file)")
	_ = lookupCmd.MarkFlagRequired("id")
	_ = lookupCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	if lookupOutput != "yaml" && lookupOutput != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", lookupOutput)
	}

	cfg, err := loadConfig(false, lookupSource)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.Source.Type, err)
	}
	loader := newLoader(cfg, source, logger)
	sessions := session.NewSessionService(memory.NewSessionStore(), session.Config{})
	svc := service.NewLoginService(sessions, loader, session.NewController(cfg.Table.IDColumn, cfg.Table.NameColumn), logger)

	rec, err := svc.Lookup(ctx, session.Credentials{ID: lookupID, Name: lookupName})
	if errors.Is(err, session.ErrInvalidCredentials) {
		return fmt.Errorf("no row matches id %q and name %q", lookupID, lookupName)
	}
	if err != nil {
		return err
	}

	return writeRecord(cmd.OutOrStdout(), rec, lookupOutput)
}

// writeRecord prints rec with its columns in table order.
func writeRecord(w io.Writer, rec table.Record, format string) error {
	if format == "json" {
		return writeRecordJSON(w, rec)
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range rec.Columns() {
		v, _ := rec.Get(c)
		var value yaml.Node
		if err := value.Encode(v); err != nil {
			return fmt.Errorf("encode column %s: %w", c, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c},
			&value,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

// writeRecordJSON writes an object whose keys keep table order.
func writeRecordJSON(w io.Writer, rec table.Record) error {
	cols := rec.Columns()
	if _, err := io.WriteString(w, "{\n"); err != nil {
		return err
	}
	for i, c := range cols {
		v, _ := rec.Get(c)
		key, err := json.Marshal(c)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "  %s: %s%s\n", key, val, sep); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}
