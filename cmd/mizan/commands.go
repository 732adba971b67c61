package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/mizan/internal/artifact"
	"github.com/hyperjump/mizan/internal/cli"
	"github.com/hyperjump/mizan/internal/config"
	"github.com/hyperjump/mizan/internal/dataset"
	"github.com/hyperjump/mizan/internal/evaluation"
	"github.com/hyperjump/mizan/internal/fileid"
	"github.com/hyperjump/mizan/internal/keyword"
	"github.com/hyperjump/mizan/internal/models"
	"github.com/hyperjump/mizan/internal/server"
	"github.com/hyperjump/mizan/internal/storage"
	"github.com/hyperjump/mizan/internal/vector"
	"github.com/hyperjump/mizan/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func createCleanCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize the case and QA workbooks",
		Long:  "Normalize every text column of the raw case workbook (and the QA workbook, when present) and write the cleaned copies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			n, err := dataset.CleanCases(cfg.Data.LegalDataPath, cfg.Data.CleanedLegalPath)
			if err != nil {
				return fmt.Errorf("clean cases: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d cases -> %s\n", n, cfg.Data.CleanedLegalPath)

			if _, err := os.Stat(cfg.Data.QADataPath); errors.Is(err, os.ErrNotExist) {
				logger.Info("no QA workbook, skipping", zap.String("path", cfg.Data.QADataPath))
				return nil
			}
			n, err = dataset.CleanQA(cfg.Data.QADataPath, cfg.Data.CleanedQAPath)
			if err != nil {
				return fmt.Errorf("clean QA pairs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d QA pairs -> %s\n", n, cfg.Data.CleanedQAPath)
			return nil
		},
	}
	return cmd
}

func createBuildCommand(g *globalFlags) *cobra.Command {
	var input string
	var force bool
	var publish bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the passage index from the cleaned case workbook",
		Long:  "Chunk every case, embed the passages and persist the vector index, case table and keyword index. An unchanged workbook is skipped unless --force is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if input == "" {
				input = cfg.Data.CleanedLegalPath
			}

			ctx := cmd.Context()
			components, err := initializeComponents(ctx, cfg, logger, false)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer components.Close()

			stats, err := components.Indexer.BuildFromFile(ctx, input, force)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if stats.Unchanged {
				fmt.Fprintf(out, "Index %s is up to date (%d passages); use --force to rebuild\n", stats.Info.BuildID, stats.Passages)
			} else {
				fmt.Fprintf(out, "Built index %s: %d cases (%d skipped), %d passages in %s\n",
					stats.Info.BuildID, stats.Cases, stats.SkippedCases, stats.Passages, stats.Duration.Round(time.Millisecond))
			}
			if !publish {
				return nil
			}

			src := indexArtifactPath(cfg)
			if vector.StoreType(cfg.Storage.IndexType) == vector.StoreTypeSQLite {
				if err := components.Storage.Checkpoint(ctx); err != nil {
					return fmt.Errorf("checkpoint database: %w", err)
				}
			}
			store, err := artifact.NewStore(ctx, artifactConfig(cfg))
			if err != nil {
				return err
			}
			manifest, err := artifact.Publish(ctx, store, src, stats.Info)
			if err != nil {
				return fmt.Errorf("publish failed: %w", err)
			}
			fmt.Fprintf(out, "Published %s\n", manifest.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "case workbook (default: data.cleaned_legal_path)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild even when the workbook is unchanged")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the built index to the artifact store")
	return cmd
}

func createFetchCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the latest published index",
		Long:  "Download the most recently published index artifact into the configured index location.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			store, err := artifact.NewStore(ctx, artifactConfig(cfg))
			if err != nil {
				return err
			}
			dst := indexArtifactPath(cfg)
			manifest, err := artifact.Fetch(ctx, store, dst)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fetched index %s (%d passages) -> %s\n", manifest.Info.BuildID, manifest.Info.Rows, dst)
			return nil
		},
	}
	return cmd
}

func createAskCommand(g *globalFlags) *cobra.Command {
	var serverURL string
	var outputFormat string
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer an Arabic legal question",
		Long:  "Answer a question from the indexed cases. The question is all remaining arguments joined by spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := joinArgs(args)
			if question == "" {
				return fmt.Errorf("question cannot be empty")
			}
			format, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			var response *models.AskResponse
			if serverURL != "" {
				// Use the HTTP API when the server is running (avoids Bleve/SQLite lock conflict).
				response, err = askViaHTTP(cmd.Context(), serverURL, question)
				if err != nil {
					return fmt.Errorf("ask failed: %w", err)
				}
			} else {
				cfg, logger, err := g.setup()
				if err != nil {
					return err
				}
				defer logger.Sync()
				components, err := initializeComponents(cmd.Context(), cfg, logger, true)
				if err != nil {
					return fmt.Errorf("failed to initialize: %w", err)
				}
				defer components.Close()

				ans, err := components.Pipeline.Answer(cmd.Context(), question)
				if err != nil {
					return fmt.Errorf("ask failed: %w", err)
				}
				resp := ans.Response(question)
				response = &resp
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), response, format, showSources)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "server URL (empty = answer locally)")
	cmd.Flags().StringVarP(&outputFormat, "format", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the retrieved passages")
	return cmd
}

func createRetrieveCommand(g *globalFlags) *cobra.Command {
	var serverURL string
	var outputFormat string
	var topK int

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Show the passages nearest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			query := models.RetrieveQuery{Query: joinArgs(args), TopK: topK}

			var response *models.RetrieveResponse
			if serverURL != "" {
				if query.Query == "" {
					return fmt.Errorf("query cannot be empty")
				}
				response, err = retrieveViaHTTP(cmd.Context(), serverURL, &query)
				if err != nil {
					return fmt.Errorf("retrieve failed: %w", err)
				}
			} else {
				cfg, logger, err := g.setup()
				if err != nil {
					return err
				}
				defer logger.Sync()
				if err := query.Validate(cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK); err != nil {
					return err
				}
				components, err := initializeComponents(cmd.Context(), cfg, logger, false)
				if err != nil {
					return fmt.Errorf("failed to initialize: %w", err)
				}
				defer components.Close()

				start := time.Now()
				results, _, err := components.Retriever.Retrieve(cmd.Context(), query.Query, query.TopK)
				if err != nil {
					return fmt.Errorf("retrieve failed: %w", err)
				}
				response = &models.RetrieveResponse{
					Query:     query.Query,
					Results:   results,
					QueryTime: time.Since(start).Milliseconds(),
				}
			}
			return cli.WriteRetrieval(cmd.OutOrStdout(), response, format)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "server URL (empty = retrieve locally)")
	cmd.Flags().StringVarP(&outputFormat, "format", "o", "text", "output format: text or json")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages (default: retrieval.top_k)")
	return cmd
}

func createEvaluateCommand(g *globalFlags) *cobra.Command {
	var qaPath string
	var outPath string
	var outputFormat string
	var ks []int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure retrieval quality on the QA workbook",
		Long:  "Retrieve passages for every QA question and report Recall@k, MRR@k and Hit@k against the question's case.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if qaPath == "" {
				qaPath = cfg.Data.CleanedQAPath
			}
			qa, err := dataset.ReadQA(qaPath)
			if err != nil {
				return err
			}

			components, err := initializeComponents(cmd.Context(), cfg, logger, false)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer components.Close()

			report, err := evaluation.EvaluateRetriever(cmd.Context(), qa, components.Retriever, ks,
				evaluation.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			if outPath != "" {
				if err := report.Write(outPath); err != nil {
					return err
				}
				logger.Info("evaluation report written", zap.String("path", outPath))
			}
			return cli.WriteMetrics(cmd.OutOrStdout(), report, format)
		},
	}

	cmd.Flags().StringVar(&qaPath, "qa", "", "QA workbook (default: data.cleaned_qa_path)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the report to this file (.yaml or .json)")
	cmd.Flags().StringVarP(&outputFormat, "format", "o", "text", "output format: text or json")
	cmd.Flags().IntSliceVar(&ks, "k", evaluation.DefaultKs, "cut-offs to report")
	return cmd
}

func createKeywordCommand(g *globalFlags) *cobra.Command {
	var outputFormat string
	var limit int
	var fuzziness int
	var phrase bool
	var caseID string

	cmd := &cobra.Command{
		Use:   "keyword <terms>",
		Short: "Look up passages by keyword",
		Long:  "Search the keyword index built alongside the vector index. Terms are stemmed with the Arabic analyzer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath, keyword.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("failed to open keyword index: %w", err)
			}
			defer kw.Close()

			query := joinArgs(args)
			hits, err := kw.Search(cmd.Context(), query, limit, &keyword.SearchOptions{
				Fuzziness: fuzziness,
				Phrase:    phrase,
				CaseID:    caseID,
			})
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}
			return cli.WriteKeywordHits(cmd.OutOrStdout(), query, hits, format)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "o", "text", "output format: text or json")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of passages")
	cmd.Flags().IntVar(&fuzziness, "fuzzy", 0, "edit distance for typo tolerance (0-2)")
	cmd.Flags().BoolVar(&phrase, "phrase", false, "match the terms as a phrase")
	cmd.Flags().StringVar(&caseID, "case", "", "restrict to one case id")
	return cmd
}

func createStatusCommand(g *globalFlags) *cobra.Command {
	var serverURL string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and storage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			var status *cli.Status
			if serverURL != "" {
				status, err = statusViaHTTP(cmd.Context(), serverURL)
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
			} else {
				cfg, logger, err := g.setup()
				if err != nil {
					return err
				}
				defer logger.Sync()
				components, err := initializeComponents(cmd.Context(), cfg, logger, false)
				if err != nil {
					return fmt.Errorf("failed to initialize: %w", err)
				}
				defer components.Close()
				status, err = localStatus(cmd.Context(), cfg, components)
				if err != nil {
					return err
				}
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "server URL (empty = read local storage)")
	cmd.Flags().StringVarP(&outputFormat, "format", "o", "text", "output format: text or json")
	return cmd
}

// localStatus summarizes the local index and reports whether the cleaned workbook
// still matches the fingerprint recorded at build time.
func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	caseCount, err := c.Storage.CountCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("count cases failed: %w", err)
	}
	status := &cli.Status{
		Cases:       caseCount,
		Passages:    int64(c.VectorIndex.Size()),
		DatasetPath: cfg.Data.CleanedLegalPath,
	}
	if c.VectorIndex.Loaded() {
		info := c.VectorIndex.Info()
		status.Index = &info
		if fp, err := fileid.Fingerprint(cfg.Data.CleanedLegalPath); err == nil {
			current := fp == info.Fingerprint
			status.DatasetCurrent = &current
		}
	}
	if n, err := c.KeywordIndex.DocCount(); err == nil {
		status.KeywordDocuments = n
	}
	if diskBytes, err := storage.DiskUsageBytes(
		cfg.Storage.IndexPath,
		cfg.Storage.DatabasePath,
		cfg.Storage.KeywordIndexPath,
	); err == nil {
		status.DiskUsageBytes = diskBytes
	}
	return status, nil
}

func createServeCommand(g *globalFlags) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			components, err := initializeComponents(cmd.Context(), cfg, logger, true)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Close()

			watchCtx, watchCancel := context.WithCancel(context.Background())
			defer watchCancel()
			if cfg.Watch.EnabledOrDefault() {
				watchSvc := newDatasetWatcher(cfg, components, logger)
				if err := watchSvc.Start(watchCtx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer watchSvc.Stop()
			}

			srv := server.NewServer(
				components.Pipeline,
				components.Retriever,
				components.VectorIndex,
				components.KeywordIndex,
				components.Storage,
				cfg,
				logger,
			)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-sigChan:
			}

			logger.Info("Shutting down...")
			watchCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default: server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: server.port)")
	return cmd
}

// newDatasetWatcher rebuilds the index when the cleaned case workbook changes. The
// indexer skips rebuilds when the content fingerprint is unchanged.
func newDatasetWatcher(cfg *config.Config, c *Components, logger *zap.Logger) *watcher.Watcher {
	idx := c.Indexer
	return watcher.NewWatcher(
		[]string{cfg.Data.CleanedLegalPath},
		func(path string) {
			stats, err := idx.BuildFromFile(context.Background(), path, false)
			if err != nil {
				logger.Warn("watch rebuild failed", zap.String("path", path), zap.Error(err))
				return
			}
			if !stats.Unchanged {
				logger.Info("index rebuilt from changed dataset",
					zap.String("path", path),
					zap.String("build_id", stats.Info.BuildID),
					zap.Int("passages", stats.Passages))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithOnRemove(func(path string) {
			logger.Warn("dataset removed; serving the last built index", zap.String("path", path))
		}),
	)
}

// indexArtifactPath is the file published and fetched for the configured index type.
func indexArtifactPath(cfg *config.Config) string {
	if vector.StoreType(cfg.Storage.IndexType) == vector.StoreTypeSQLite {
		return cfg.Storage.DatabasePath
	}
	return cfg.Storage.IndexPath
}

func artifactConfig(cfg *config.Config) artifact.Config {
	return artifact.Config{
		Type:      artifact.StoreType(cfg.Artifacts.Type),
		LocalPath: cfg.Artifacts.LocalPath,
		Bucket:    cfg.Artifacts.Bucket,
		Region:    cfg.Artifacts.Region,
		Prefix:    cfg.Artifacts.Prefix,
	}
}
