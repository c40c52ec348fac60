// Command dbtool is the operator CRUD tool of SPEC_FULL.md §D.2: it
// inspects persisted broadcast messages out of band from the gateway and
// consumer processes, and generates encryption key/IV pairs (§D.4). It
// shares the relational store with the rest of the fabric but never
// touches the dispatcher or command pipeline.
package main

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ngee044/realtimechat/internal/config"
	"github.com/ngee044/realtimechat/internal/persistence"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "dbtool",
		Short: "Inspect persisted broadcast messages and manage encryption keys",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "main_server_configurations.json", "path to a JSON configuration file carrying the database section")

	root.AddCommand(buildListCommand(&configPath))
	root.AddCommand(buildGetCommand(&configPath))
	root.AddCommand(buildDeleteCommand(&configPath))
	root.AddCommand(buildKeysCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(configPath string) (*persistence.Store, error) {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return persistence.NewStore(persistence.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, DBName: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns, MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
}

func buildListCommand(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recently persisted messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.ListMessages(limit)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			for _, row := range rows {
				fmt.Printf("%s\n", formatRow(row))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print")
	return cmd
}

func buildGetCommand(configPath *string) *cobra.Command {
	var id, subID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print every persisted message for one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || subID == "" {
				return fmt.Errorf("--id and --sub_id are required")
			}
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.GetMessages(id, subID)
			if err != nil {
				return fmt.Errorf("failed to read messages: %w", err)
			}
			for _, row := range rows {
				fmt.Printf("%s\n", formatRow(row))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id")
	cmd.Flags().StringVar(&subID, "sub_id", "", "session sub-id")
	return cmd
}

func buildDeleteCommand(configPath *string) *cobra.Command {
	var id, subID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete every persisted message for one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || subID == "" {
				return fmt.Errorf("--id and --sub_id are required")
			}
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.DeleteMessages(id, subID)
			if err != nil {
				return fmt.Errorf("failed to delete messages: %w", err)
			}
			fmt.Printf("deleted %d message(s) for [%s,%s]\n", n, id, subID)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id")
	cmd.Flags().StringVar(&subID, "sub_id", "", "session sub-id")
	return cmd
}

func buildKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Encryption key/IV management for the persistence worker",
	}
	keysCmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a random AES-256 key and IV, base64-printed",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			iv := make([]byte, aes.BlockSize)
			if _, err := rand.Read(iv); err != nil {
				return fmt.Errorf("failed to generate iv: %w", err)
			}
			fmt.Printf("encryption_key_hex: %s\n", base64.StdEncoding.EncodeToString(key))
			fmt.Printf("encryption_iv_hex:  %s\n", base64.StdEncoding.EncodeToString(iv))
			return nil
		},
	})
	return keysCmd
}

func formatRow(row persistence.PersistedMessage) string {
	return fmt.Sprintf("[%s,%s] %s encrypted=%v content=%s created_at=%s",
		row.ID, row.SubID, row.ServerName, row.IsEncrypted, row.Content, row.CreatedAt.Format("2006-01-02 15:04:05"))
}
