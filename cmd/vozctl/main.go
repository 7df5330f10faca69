// Command vozctl runs maintenance tasks against the same configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/adapter/cache"
	"github.com/seu-repo/voz-visible/internal/adapter/queue"
	"github.com/seu-repo/voz-visible/internal/adapter/storage/postgres"
	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/service/audiocache"
	"github.com/seu-repo/voz-visible/internal/service/auth"
	"github.com/seu-repo/voz-visible/internal/service/ledger"
	"github.com/seu-repo/voz-visible/pkg/config"
)

type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vozctl",
		Short:         "Maintenance tasks for the Voz Visible server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (defaults to the server search path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.cacheCmd(), a.ledgerCmd(), a.eventsCmd(), a.tokenCmd())
	return root
}

func (a *app) init() error {
	var err error
	if a.verbose {
		a.log, err = zap.NewDevelopment()
	} else {
		a.log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.cfg, err = config.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect and prune the synthesized audio cache"}

	size := &cobra.Command{
		Use:   "size",
		Short: "Total bytes held by the audio cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cleanup, err := a.audioCache()
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := ac.Size(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes (%.2f MiB)\n", n, float64(n)/(1<<20))
			return nil
		},
	}

	var olderThan time.Duration
	evict := &cobra.Command{
		Use:   "evict",
		Short: "Delete cached clips older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			ac, cleanup, err := a.audioCache()
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := ac.EvictOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d clip(s) older than %s\n", n, olderThan)
			return nil
		},
	}
	evict.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age of clips to delete")

	cmd.AddCommand(size, evict)
	return cmd
}

func (a *app) audioCache() (*audiocache.Cache, func(), error) {
	var rdb *redis.Client
	cleanup := func() {}
	if a.cfg.TTS.CacheBackend == "redis" {
		var err error
		rdb, err = cache.NewRedisClient(a.cfg.Redis.URL, a.log)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { rdb.Close() }
	}
	store, err := cache.NewStore(a.cfg.TTS.CacheBackend, a.cfg.TTS.CachePath, rdb, a.cfg.TTS.MemoryMaxAge, a.log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return audiocache.New(store, a.cfg.TTS.Timeout, a.log), cleanup, nil
}

func (a *app) ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "Read the structured translation ledger"}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := a.ledger()
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}

	var (
		limit   int
		session string
		since   time.Duration
	)
	query := &cobra.Command{
		Use:   "query",
		Short: "List records newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.LedgerFilter{Limit: limit, SessionID: session}
			if since > 0 {
				start := time.Now().Add(-since)
				filter.Start = &start
			}

			l, cleanup, err := a.ledger()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := l.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	query.Flags().IntVar(&limit, "limit", domain.DefaultLedgerLimit, "maximum number of records")
	query.Flags().StringVar(&session, "session", "", "only records from this session")
	query.Flags().DurationVar(&since, "since", 0, "only records newer than this (0 means no bound)")

	cmd.AddCommand(stats, query)
	return cmd
}

func (a *app) ledger() (*ledger.Ledger, func(), error) {
	if a.cfg.Database.URL == "" {
		return nil, nil, domain.ErrLedgerUnavailable
	}
	db, err := postgres.NewConnection(a.cfg.Database.URL, postgres.PoolConfig{
		MaxIdleConns: 1,
		MaxOpenConns: 2,
	}, a.log)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewTranslationRepository(db, a.log)
	return ledger.New(nil, repo, nil, a.log), func() { _ = postgres.Close(db) }, nil
}

func (a *app) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "events", Short: "Follow the recognition event stream"}

	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print translation events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mq, err := queue.New(a.cfg.Queue.Driver, a.cfg.Queue.URL, a.log)
			if err != nil {
				return err
			}
			if mq == nil {
				return fmt.Errorf("queue.driver is not configured")
			}
			defer mq.Close()

			out := cmd.OutOrStdout()
			err = mq.Subscribe(ledger.SubjectRecorded, func(data []byte) error {
				_, err := fmt.Fprintln(out, string(data))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "tailing %s, Ctrl+C to stop\n", ledger.SubjectRecorded)
			<-cmd.Context().Done()
			return nil
		},
	})
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Issue access tokens"}

	var (
		user string
		ttl  time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			svc := auth.NewJWTService(a.cfg.JWT.Secret, a.cfg.JWT.Issuer, a.cfg.JWT.Audience, ttl, a.log)
			token, err := svc.GenerateToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&user, "user", "", "subject of the token")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
