package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"vitrine/config"
	"vitrine/db"
	"vitrine/logging"
	"vitrine/router"
	"vitrine/seed"
	"vitrine/services"
	"vitrine/store"
	"vitrine/workers"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "vitrine",
		Short:   "Vitrine - liberação de acesso a produtos por webhook de pagamento",
		Version: Version,
		RunE:    runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "arquivo de configuração JSON")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(grantsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sobe a API HTTP",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Cria/atualiza as tabelas e índices",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, cleanup, err := bootstrap("migrate")
			if err != nil {
				return err
			}
			defer cleanup()
			return db.Migrate(conn)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Carrega o catálogo de produtos a partir de um arquivo YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, cleanup, err := bootstrap("seed")
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.Migrate(conn); err != nil {
				return err
			}
			products, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			n, err := seed.Apply(cmd.Context(), store.NewCatalogStore(conn, cfg.StoreTimeout()), products)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d produtos carregados\n", n)
			return nil
		},
	}
}

func grantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Administração de acessos",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke [id]",
		Short: "Revoga um acesso ativo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("id inválido: %s", args[0])
			}

			cfg, conn, cleanup, err := bootstrap("grants")
			if err != nil {
				return err
			}
			defer cleanup()

			grant, err := store.NewGrantStore(conn, cfg.StoreTimeout()).RevokeGrant(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "grant %d (%s / %s) revogado\n", grant.ID, grant.Email, grant.PlanCode)
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Mostra a versão",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// bootstrap carrega a configuração, inicializa o log e abre o banco.
// cleanup fecha o banco e o arquivo de log; todo comando deve chamá-lo.
func bootstrap(component string) (cfg config.Configuration, conn *gorm.DB, cleanup func(), err error) {
	cfg, err = config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: component,
		FilePath:  cfg.LogPath,
	})

	conn, err = db.Connect(cfg)
	if err != nil {
		logging.Shutdown()
		return cfg, nil, nil, err
	}
	cleanup = func() {
		conn.Close()
		logging.Shutdown()
	}
	return cfg, conn, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, conn, cleanup, err := bootstrap("api")
	if err != nil {
		return err
	}
	defer cleanup()

	if err := db.Migrate(conn); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := cfg.StoreTimeout()
	catalog := store.NewCatalogStore(conn, timeout)
	grants := store.NewGrantStore(conn, timeout)
	engine := services.NewEngine(catalog, grants)

	workers.StartGrantStatsCollector(ctx, grants, cfg.StatsInterval())

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	router.Initialize(r, cfg, engine, func(ctx context.Context) error {
		return store.Ping(ctx, conn, timeout)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ApiPort).Str("version", Version).Msg("Vitrine API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
