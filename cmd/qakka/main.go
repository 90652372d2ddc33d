package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serverrun "github.com/qakkaio/qakka/internal/cmd/server"
	cfgpkg "github.com/qakkaio/qakka/internal/config"
	"github.com/qakkaio/qakka/internal/queueregistry"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	logpkg "github.com/qakkaio/qakka/pkg/log"
)

func main() {
	level := os.Getenv("QAKKA_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "qakka",
		Short: "Qakka queue CLI",
		Long:  "Qakka is a single-binary distributed queue runtime. This CLI manages the server and basic queue operations.",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCreateQueueCmd())
	rootCmd.AddCommand(newDeleteQueueCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newAckCmd())
	rootCmd.AddCommand(newNackCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newShardCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("QAKKA_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the qakka server (HTTP API)",
		Aliases: []string{"server"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			localRegion, _ := cmd.Flags().GetString("region")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if localRegion != "" {
				cfg.LocalRegion = localRegion
			}
			if logLevel != "" {
				_ = os.Setenv("QAKKA_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("QAKKA_LOG_FORMAT", logFormat)
			}

			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
				ConfigPath:    configPath,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	cmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	cmd.Flags().String("http", ":8080", "HTTP listen address")
	cmd.Flags().String("config", "", "Path to a JSON or YAML config file; watched for hot-reload if set")
	cmd.Flags().String("region", "", "This process's local region (overrides config file)")
	cmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	cmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	cmd.Flags().String("log-level", os.Getenv("QAKKA_LOG_LEVEL"), "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", os.Getenv("QAKKA_LOG_FORMAT"), "Log format: text|json")
	return cmd
}

func newCreateQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-queue",
		Short: "Create a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			region, _ := cmd.Flags().GetString("region")
			origin, _ := cmd.Flags().GetString("origin-region")
			regions, _ := cmd.Flags().GetStringArray("regions")
			delayMs, _ := cmd.Flags().GetInt64("delay-ms")
			leaseSeconds, _ := cmd.Flags().GetInt("lease-seconds")
			maxRedeliveries, _ := cmd.Flags().GetInt("max-redeliveries")

			q := queueregistry.Queue{
				Name:            name,
				LocalRegion:     region,
				OriginRegion:    origin,
				Regions:         regions,
				DelayMs:         delayMs,
				LeaseSeconds:    leaseSeconds,
				MaxRedeliveries: maxRedeliveries,
			}
			b, err := json.Marshal(q)
			if err != nil {
				return err
			}
			resp, err := http.Post(apiURL()+"/v1/queues/", "application/json", bytes.NewReader(b))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Queue name")
	cmd.Flags().String("region", "", "Local region this process hosts the queue for")
	cmd.Flags().String("origin-region", "", "Origin region (defaults to --region)")
	cmd.Flags().StringArray("regions", nil, "Additional regions this queue spans (repeatable)")
	cmd.Flags().Int64("delay-ms", 0, "Default delay applied to sends, in milliseconds")
	cmd.Flags().Int("lease-seconds", 0, "Default visibility lease, in seconds (0 uses server default)")
	cmd.Flags().Int("max-redeliveries", 0, "Redeliveries allowed before dead-lettering (0 uses server default)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDeleteQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-queue",
		Short: "Delete a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			req, err := http.NewRequest(http.MethodDelete, apiURL()+"/v1/queues/"+name+"/", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Queue name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

type sendRequestBody struct {
	SourceRegion string `json:"sourceRegion"`
	DestRegion   string `json:"destRegion"`
	Blob         []byte `json:"blob"`
	ContentType  string `json:"contentType"`
	DelayMs      int64  `json:"delayMs"`
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			source, _ := cmd.Flags().GetString("source-region")
			dest, _ := cmd.Flags().GetString("dest-region")
			data, _ := cmd.Flags().GetString("data")
			contentType, _ := cmd.Flags().GetString("content-type")
			delayMs, _ := cmd.Flags().GetInt64("delay-ms")

			body := sendRequestBody{SourceRegion: source, DestRegion: dest, Blob: []byte(data), ContentType: contentType, DelayMs: delayMs}
			b, err := json.Marshal(body)
			if err != nil {
				return err
			}
			resp, err := http.Post(apiURL()+"/v1/queues/"+queue+"/messages/", "application/json", bytes.NewReader(b))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().String("source-region", "", "Region the message originates in")
	cmd.Flags().String("dest-region", "", "Region the message should be routed to")
	cmd.Flags().String("data", "", "Message body")
	cmd.Flags().String("content-type", "application/octet-stream", "Message content type")
	cmd.Flags().Int64("delay-ms", 0, "Delay before the message becomes visible, in milliseconds")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch the next available messages from a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			n, _ := cmd.Flags().GetInt("count")
			consumerID, _ := cmd.Flags().GetString("consumer-id")
			url := fmt.Sprintf("%s/v1/queues/%s/messages/?n=%d", apiURL(), queue, n)
			if consumerID != "" {
				url += "&consumerId=" + consumerID
			}
			resp, err := http.Get(url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().Int("count", 1, "Number of messages to fetch")
	cmd.Flags().String("consumer-id", "", "Optional consumer identity, recorded for observability only")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newAckCmd() *cobra.Command {
	return newMessageActionCmd("ack", "Acknowledge a delivered message")
}

func newNackCmd() *cobra.Command {
	return newMessageActionCmd("nack", "Return a delivered message to its queue immediately")
}

func newMessageActionCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			id, _ := cmd.Flags().GetString("id")
			url := fmt.Sprintf("%s/v1/queues/%s/messages/%s/%s", apiURL(), queue, id, action)
			resp, err := http.Post(url, "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	cmd.Flags().String("id", "", "The queueMessageId returned by get")
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force a queue's local actor to top up its in-memory buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := http.Post(apiURL()+"/v1/queues/"+queue+"/refresh", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newShardCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shard-check",
		Short: "Force an immediate shard allocation check for a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := http.Post(apiURL()+"/v1/queues/"+queue+"/shard-check", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			fmt.Println("status:", resp.Status)
			return nil
		},
	}
	cmd.Flags().String("queue", "", "Queue name")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func printJSON(cmd *cobra.Command, resp *http.Response) error {
	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if err == io.EOF {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			return nil
		}
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
