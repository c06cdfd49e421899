package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fogfish/opts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/phsym/zeroslog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	lotus "github.com/BrainbaseHQ/lotus-prompt"
	"github.com/BrainbaseHQ/lotus-prompt/broker"
	"github.com/BrainbaseHQ/lotus-prompt/cmd/lotus/internal/console"
	"github.com/BrainbaseHQ/lotus-prompt/config"
	"github.com/BrainbaseHQ/lotus-prompt/internal/httpx"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/slogx"
	"github.com/BrainbaseHQ/lotus-prompt/provider/openai"
	"github.com/BrainbaseHQ/lotus-prompt/script"
	"github.com/BrainbaseHQ/lotus-prompt/state"
)

var runCmd = &cobra.Command{
	Use:   "run <script.json>",
	Short: "Run a conversation script interactively",
	Long:  `Starts one session over the script, exchanging turns on stdin and stdout until the script completes, transfers, or the loop guard trips.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScript(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("debug", false, "Dump turns and extractions as they happen")
	runCmd.Flags().StringP("model", "m", "", "Override the configured chat model")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
}

func runScript(cmd *cobra.Command, path string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	if debug {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
		log := zerolog.New(output).With().Timestamp().Logger()
		slog.SetDefault(slog.New(
			zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelDebug}),
		))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("serving metrics", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Warn("metrics server stopped", slogx.Error(err))
			}
		}()
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	program, err := script.Decode(data)
	if err != nil {
		return err
	}

	oracle := openai.New(cfg.Model)
	transport := console.NewTransport(os.Stdin, os.Stdout)
	exchanger := openai.NewExchanger(oracle, transport)

	options := []opts.Option[lotus.Manager]{
		lotus.WithExchanger(exchanger),
		lotus.WithEvaluator(openai.NewEvaluator(oracle)),
		lotus.WithExtractor(openai.NewExtractor(oracle)),
		lotus.WithSayer(exchanger),
		lotus.WithHTTP(httpx.New(cfg.HTTPTimeout.Std())),
		lotus.WithLimits(cfg.Limits()),
		lotus.WithRetainState(cfg.RetainState),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		options = append(options, lotus.WithStores(func(sessionID uuid.UUID) state.Store {
			return state.NewRedis(client, sessionID.String(), state.WithTTL(cfg.RedisTTL.Std()))
		}))
	}

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer conn.Close()
		options = append(options, lotus.WithBroker(broker.NATS(conn)))
	}

	manager, err := lotus.New(program, options...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return manager.Run(ctx, console.NewHook(os.Stdout, debug))
}
