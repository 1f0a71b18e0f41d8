package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/blob"
	"arboreal/harvest/internal/config"
	"arboreal/harvest/internal/db"
	"arboreal/harvest/internal/export"
	"arboreal/harvest/internal/report"
)

// integrityTopN bounds the orphan rows listed in an integrity report.
const integrityTopN = 10

var (
	downloadUpload bool
	downloadJSON   bool
	downloadQuiet  bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fetch every sample and write the five datasets to a ZIP of CSVs",
	Long: `Fetches the sample list and every sample's detail record, flattens them
into the Samples, Trees, Stems, Calculations and Heights datasets and writes
one CSV per dataset into a ZIP archive.

Only the first tree of each sample is exported. Its stems go to Stems.csv
and Trees.csv has no stems column; join on sample_id and tree_id.

Samples that cannot be fetched or are malformed are skipped and reported;
the download only fails when the sample list itself is unusable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := config.GetLogger(ctx)

		if downloadUpload && !cfg.S3.Enabled() {
			return errors.New("--upload needs s3.bucket in the config or HARVEST_S3_BUCKET")
		}
		client, err := newClient(ctx)
		if err != nil {
			return err
		}

		started := time.Now()
		samples, err := aggregate.LoadSamples(ctx, client)
		if err != nil {
			return err
		}
		logger.Info("sample list loaded", slog.Int("samples", samples.Len()))

		opts := aggregate.Options{Concurrency: cfg.Concurrency, Logger: logger}
		if !downloadQuiet && !downloadJSON {
			opts.Progress = report.NewProgress(cmd.ErrOrStderr()).Func()
		}
		res, err := aggregate.New(opts).Aggregate(ctx, samples, client)
		if err != nil {
			return err
		}

		data, err := export.Archive(res.Tables())
		if err != nil {
			return fmt.Errorf("building archive: %w", err)
		}
		if err := writeArchive(cfg.Output, data); err != nil {
			return err
		}

		summary := report.NewSummary(res)
		summary.Archive = cfg.Output
		summary.Integrity = aggregate.CheckIntegrity(res, integrityTopN)
		if !summary.Integrity.OK() {
			logger.Warn("integrity check failed",
				slog.Int("orphan_stems", summary.Integrity.OrphanStems),
				slog.Int("unknown_sample_ids", len(summary.Integrity.UnknownSampleIDs)))
		}

		if downloadUpload {
			key, url, err := uploadArchive(ctx, data, started)
			if err != nil {
				return err
			}
			summary.UploadKey, summary.UploadURL = key, url
		}

		if cfg.SQLite != "" {
			id, err := saveSnapshot(ctx, res, summary, started)
			if err != nil {
				return err
			}
			summary.RunID = id
			summary.SQLite = cfg.SQLite
		}

		summary.ElapsedMs = time.Since(started).Milliseconds()
		if downloadJSON {
			return report.WriteJSON(cmd.OutOrStdout(), summary)
		}
		if !downloadQuiet {
			report.WriteSummary(cmd.OutOrStdout(), summary)
		}
		return nil
	},
}

func init() {
	f := downloadCmd.Flags()
	f.StringP("out", "o", config.DefaultOutput, "Archive path")
	f.String("sqlite", "", "Also write the datasets and a run record to this SQLite file")
	f.IntP("concurrency", "c", config.DefaultConcurrency, "Parallel detail fetches")
	f.BoolVar(&downloadUpload, "upload", false, "Upload the archive to the configured S3 bucket")
	f.BoolVar(&downloadJSON, "json", false, "Output the summary as JSON")
	f.BoolVarP(&downloadQuiet, "quiet", "q", false, "No progress or summary output")
	rootCmd.AddCommand(downloadCmd)
}

// writeArchive writes data next to path and renames it into place. A failed
// write never leaves a truncated archive at path.
func writeArchive(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

func uploadArchive(ctx context.Context, data []byte, at time.Time) (key, url string, err error) {
	store, err := openStore(ctx, cfg.S3)
	if err != nil {
		return "", "", err
	}
	key = blob.ArchiveKey(cfg.S3.Prefix, at)
	if _, err := store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: export.ContentType}); err != nil {
		return "", "", fmt.Errorf("uploading archive: %w", err)
	}
	url, err = store.PresignURL(ctx, key, blob.DefaultExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presigning %s: %w", key, err)
	}
	config.GetLogger(ctx).Info("archive uploaded", slog.String("key", key))
	return key, url, nil
}

// saveSnapshot replaces the dataset tables in the SQLite file and appends a
// run record. It returns the run ID.
func saveSnapshot(ctx context.Context, res *aggregate.Result, s *report.Summary, started time.Time) (string, error) {
	d, err := openDatabase()
	if err != nil {
		return "", err
	}
	defer d.Close()

	if err := d.WriteTables(ctx, res.Tables()); err != nil {
		return "", err
	}
	counts := res.Counts()
	run := &db.Run{
		StartedAt:    started.UnixMilli(),
		FinishedAt:   time.Now().UnixMilli(),
		SampleCount:  s.Samples,
		Skipped:      s.Skipped,
		Trees:        counts[aggregate.TreesTable],
		Stems:        counts[aggregate.StemsTable],
		Calculations: counts[aggregate.CalculationsTable],
		Heights:      counts[aggregate.HeightsTable],
	}
	if s.Archive != "" {
		if abs, err := filepath.Abs(s.Archive); err == nil {
			run.ArchivePath = &abs
		}
	}
	if s.UploadKey != "" {
		run.UploadKey = &s.UploadKey
	}
	if err := d.RecordRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}
