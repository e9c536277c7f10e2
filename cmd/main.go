package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Zachdehooge/flood-dashboard/internal/advisor"
	"github.com/Zachdehooge/flood-dashboard/internal/config"
	"github.com/Zachdehooge/flood-dashboard/internal/dashboard"
	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
	"github.com/Zachdehooge/flood-dashboard/internal/generator"
	"github.com/Zachdehooge/flood-dashboard/internal/risk"
	"github.com/Zachdehooge/flood-dashboard/internal/selection"
	"github.com/Zachdehooge/flood-dashboard/internal/server"
	"github.com/Zachdehooge/flood-dashboard/internal/sink"
)

var (
	cfgFile    string
	outputFile string
	verbose    bool
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc3545")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func main() {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:   "flood-dashboard",
		Short: "Serve the live flood risk dashboard",
		Long: `Flood Dashboard polls the flood prediction service, keeps the
highest-risk location in focus and serves a live map with suggested actions.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./flood-dashboard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("backend", "http://127.0.0.1:5000", "Prediction service base URL")
	rootCmd.Flags().String("addr", ":8080", "HTTP listen address")
	rootCmd.Flags().Duration("interval", 10*time.Second, "Poll interval (minimum 1s)")

	// flags override file and environment values when set
	_ = v.BindPFlag("prediction.base_url", rootCmd.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag("server.addr", rootCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("poll.interval", rootCmd.Flags().Lookup("interval"))

	addListCmd(rootCmd, v)
	addSuggestCmd(rootCmd, v)
	addRenderCmd(rootCmd, v)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serve runs the poller and the HTTP server until interrupted.
func serve(cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := fetcher.NewClient(cfg.Prediction.BaseURL, cfg.Prediction.Timeout)
	engine := advisor.NewEngine(client, cfg.Suggestions.GenericMarkers)

	pub, err := sink.Open(ctx, cfg.Sinks)
	if err != nil {
		return fmt.Errorf("failed to open sinks: %w", err)
	}
	defer pub.Close()

	opts := dashboard.Options{Interval: cfg.Poll.Interval, DemoFallback: cfg.Poll.DemoFallback}
	if pub.Len() > 0 {
		opts.Publisher = pub
	}
	d := dashboard.New(client, engine, opts)
	srv := server.New(d, server.Options{Heartbeat: cfg.Server.Heartbeat, Verbose: verbose})

	polling := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(polling)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	cmd.Println(fmt.Sprintf("Polling %s every %s. Open http://localhost%s", client.BaseURL(), cfg.Poll.Interval, cfg.Server.Addr))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Printf("server shutdown: %v", serr)
	}
	<-polling
	return err
}

// snapshotOnce runs a single refresh and waits briefly for suggestions to resolve.
func snapshotOnce(ctx context.Context, cfg *config.Config) dashboard.Snapshot {
	client := fetcher.NewClient(cfg.Prediction.BaseURL, cfg.Prediction.Timeout)
	d := dashboard.New(client, advisor.NewEngine(client, cfg.Suggestions.GenericMarkers), dashboard.Options{
		DemoFallback: cfg.Poll.DemoFallback,
	})
	updates, cancel := d.Subscribe()
	defer cancel()

	d.Refresh(ctx)
	timeout := time.After(cfg.Prediction.Timeout + time.Second)
	for d.Snapshot().Loading {
		select {
		case <-updates:
		case <-timeout:
			return d.Snapshot()
		case <-ctx.Done():
			return d.Snapshot()
		}
	}
	return d.Snapshot()
}

// addListCmd adds a 'list' subcommand that prints locations ordered by risk
func addListCmd(rootCmd *cobra.Command, v *viper.Viper) {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored locations by risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			snap := snapshotOnce(cmd.Context(), cfg)
			if snap.Banner != "" {
				cmd.Println(bannerStyle.Render(snap.Banner))
			}
			if len(snap.Locations) == 0 {
				cmd.Println("No locations reported.")
				return nil
			}

			locations := append([]dashboard.LocationView(nil), snap.Locations...)
			sort.SliceStable(locations, func(i, j int) bool {
				return locations[i].RiskScore > locations[j].RiskScore
			})

			cmd.Println(headerStyle.Render("Monitored Locations"))
			for _, loc := range locations {
				tier := lipgloss.NewStyle().Foreground(lipgloss.Color(loc.Color)).Width(8).Render(string(loc.Tier))
				cmd.Println(fmt.Sprintf("%s %3d%%  %-28s %s", tier, loc.Percent, loc.Name, mutedStyle.Render(loc.ID)))
			}
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)
}

// addSuggestCmd adds 'suggest <location-id>'
func addSuggestCmd(rootCmd *cobra.Command, v *viper.Viper) {
	suggestCmd := &cobra.Command{
		Use:   "suggest <location-id>",
		Short: "Show suggested actions for a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := fetcher.NewClient(cfg.Prediction.BaseURL, cfg.Prediction.Timeout)

			locations, err := client.FetchStatus(ctx)
			if err != nil {
				if !cfg.Poll.DemoFallback {
					return fmt.Errorf("failed to fetch status: %w", err)
				}
				cmd.Println(bannerStyle.Render(dashboard.UnreachableBanner))
				locations = fetcher.DemoLocations()
			}
			loc, ok := selection.Find(locations, args[0])
			if !ok {
				return fmt.Errorf("%w: %s", dashboard.ErrUnknownLocation, args[0])
			}

			res := advisor.NewEngine(client, cfg.Suggestions.GenericMarkers).Resolve(ctx, loc)
			tier := risk.TierFor(loc.RiskScore)
			cmd.Println(headerStyle.Render(fmt.Sprintf("%s (%d%% %s)", loc.Name, risk.Percent(loc.RiskScore), tier)))
			if res.Fallback {
				cmd.Println(mutedStyle.Render("local guidance"))
			}
			for _, s := range res.Suggestions {
				line := fmt.Sprintf("[%s] %s", advisor.ParsePriority(s.Priority), s.Action)
				if s.Rerouteable() {
					line += mutedStyle.Render(" (reroute plan available)")
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	rootCmd.AddCommand(suggestCmd)
}

// addRenderCmd adds 'render', which writes a static page of the current state
func addRenderCmd(rootCmd *cobra.Command, v *viper.Viper) {
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render the dashboard to a static HTML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if verbose {
				cmd.Println(fmt.Sprintf("Fetching status from %s...", cfg.Prediction.BaseURL))
			}
			snap := snapshotOnce(cmd.Context(), cfg)
			if err := generator.WriteHTML(outputFile, snap); err != nil {
				return fmt.Errorf("failed to generate HTML: %w", err)
			}
			cmd.Println(fmt.Sprintf("Dashboard saved to %s", outputFile))
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "flood-dashboard.html", "Output HTML file path")
	rootCmd.AddCommand(renderCmd)
}
