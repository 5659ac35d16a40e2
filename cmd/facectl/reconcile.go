package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/facevault/internal/reconcile"
	"github.com/your-org/facevault/internal/storage"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List stored objects that have no record",
	Long: `Scan the photos and face crops buckets for objects whose URL is not
referenced by any record. These are left behind when an upload succeeded
but the record write after it failed.

Without --delete the command only reports them.

Example:
  facectl reconcile
  facectl reconcile --delete`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Bool("delete", false, "Delete the orphaned objects")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	doDelete := mustGetBool(cmd, "delete")
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("connect to minio: %w", err)
	}

	orphans, err := reconcile.Find(ctx, minioStore, db, cfg.MinIO.PhotosBucket, cfg.MinIO.CropsBucket)
	if err != nil {
		return err
	}

	total := 0
	for _, o := range orphans {
		for _, key := range o.Keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", o.Bucket, key)
		}
		total += len(o.Keys)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned object(s)\n", total)

	if !doDelete || total == 0 {
		return nil
	}

	deleted, err := reconcile.Delete(ctx, minioStore, orphans)
	if err != nil {
		return fmt.Errorf("deleted %d of %d: %w", deleted, total, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d object(s)\n", deleted)
	return nil
}
