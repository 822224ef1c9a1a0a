package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"hongeet.dev/backend/internal/config"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/rpc"
	"hongeet.dev/backend/pkg/jsonrpc"
)

// remote returns a JSON-RPC client when --server is set, nil otherwise.
func remote(cmd *cobra.Command) *jsonrpc.Client {
	server, _ := cmd.Flags().GetString("server")
	if server == "" {
		return nil
	}
	return jsonrpc.NewClient(strings.TrimRight(server, "/") + "/rpc")
}

func addServerFlag(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "call a running server (e.g. http://127.0.0.1:8080) instead of resolving locally")
}

// takeFlag returns nil when --take was not given.
func takeFlag(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("take") {
		return nil
	}
	take, _ := cmd.Flags().GetInt("take")
	return &take
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func localApp(ctx context.Context) (*app, error) {
	return newApp(ctx, cfg, nil, logger)
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <videoId|url>",
		Short: "Resolve a video to a playable audio URL and headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			urlOnly, _ := cmd.Flags().GetBool("url-only")
			req := models.ExtractRequest{VideoID: args[0]}

			if client := remote(cmd); client != nil {
				if urlOnly {
					var res models.ExtractURLResponse
					if err := client.Call(ctx, rpc.MethodMediaExtractAudioURL, req, &res); err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				var res models.ResolvedAudio
				if err := client.Call(ctx, rpc.MethodMediaExtractAudio, req, &res); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			a, err := localApp(ctx)
			if err != nil {
				return err
			}
			if urlOnly {
				url, err := a.media.ExtractAudioURL(ctx, req.VideoID, nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), models.ExtractURLResponse{URL: url})
			}
			audio, err := a.media.ExtractAudio(ctx, req.VideoID, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), audio)
		},
	}
	cmd.Flags().Bool("url-only", false, "print only the URL")
	addServerFlag(cmd)
	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for music tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := models.SearchRequest{Query: strings.Join(args, " "), Take: takeFlag(cmd)}

			var tracks []models.Track
			if client := remote(cmd); client != nil {
				if err := client.Call(ctx, rpc.MethodMediaSearch, req, &tracks); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tracks)
			}

			a, err := localApp(ctx)
			if err != nil {
				return err
			}
			tracks, err = a.media.Search(ctx, req.Query, models.TakeOrDefault(req.Take, cfg.Search.DefaultTake))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tracks)
		},
	}
	cmd.Flags().Int("take", 0, "number of results (1-50)")
	addServerFlag(cmd)
	return cmd
}

func newRelatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related <videoId>",
		Short: "List tracks related to a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := models.RelatedRequest{VideoID: args[0], Take: takeFlag(cmd)}

			var tracks []models.Track
			if client := remote(cmd); client != nil {
				if err := client.Call(ctx, rpc.MethodMediaRelated, req, &tracks); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tracks)
			}

			a, err := localApp(ctx)
			if err != nil {
				return err
			}
			tracks, err = a.media.Related(ctx, req.VideoID, models.TakeOrDefault(req.Take, cfg.Search.RelatedTake))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tracks)
		},
	}
	cmd.Flags().Int("take", 0, "number of results (1-50)")
	addServerFlag(cmd)
	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <videoId>",
		Short: "Download the audio of a video to the download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			title, _ := cmd.Flags().GetString("title")
			req := models.DownloadRequest{VideoID: args[0], Title: title}

			if client := remote(cmd); client != nil {
				var task models.DownloadTask
				if err := client.Call(ctx, rpc.MethodDownloadStart, req, &task); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), task)
			}

			// a one-off download ignores the downloads feature flag
			cfg.Features.Downloads = true
			a, err := localApp(ctx)
			if err != nil {
				return err
			}

			a.downloads.OnUpdate(func(task models.DownloadTask) {
				if task.Status == models.DownloadRunning {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s %3d%%", task.Title, task.Progress)
				}
			})

			task, err := a.downloads.Start(ctx, req)
			if err != nil {
				return err
			}
			final, err := a.downloads.Wait(ctx, task.ID)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if final.Status == models.DownloadFailed {
				return fmt.Errorf("download failed: %s", final.Error)
			}
			return printJSON(cmd.OutOrStdout(), final)
		},
	}
	cmd.Flags().String("title", "", "file name without extension (defaults to the video id)")
	addServerFlag(cmd)
	return cmd
}

func newUpdateExtractorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-extractor",
		Short: "Update the yt-dlp binary to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := localApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.ytdlp.Update(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration written")
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.GetConfigString(cfg))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
