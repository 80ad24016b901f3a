package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/spookd/sling/internal/config"
	"github.com/spookd/sling/internal/downloader"
	"github.com/spookd/sling/internal/transport"
	"github.com/spookd/sling/internal/tui"
	"github.com/spookd/sling/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "sling [url]...",
	Short:   "A resumable terminal download manager",
	Long:    `Sling downloads files over HTTP(S) with automatic resume, live progress and a sliding-window speed estimate.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initializeEnvironment()

		outputDir, _ := cmd.Flags().GetString("output")
		batchFile, _ := cmd.Flags().GetString("batch")
		plain, _ := cmd.Flags().GetBool("plain")
		proxyURL, _ := cmd.Flags().GetString("proxy")
		userAgent, _ := cmd.Flags().GetString("user-agent")
		insecure, _ := cmd.Flags().GetBool("insecure")

		settings, err := config.LoadSettings()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
			settings = config.DefaultSettings()
		}

		// Flags override persisted settings for this run.
		if proxyURL != "" {
			settings.Network.ProxyURL = proxyURL
		}
		if userAgent != "" {
			settings.Network.UserAgent = userAgent
		}
		if insecure {
			settings.Network.SkipTLSVerification = true
		}
		if plain {
			settings.General.PlainOutput = true
		}
		if outputDir == "" {
			outputDir = settings.General.DefaultDownloadDir
		}
		if outputDir == "" {
			outputDir = "."
		}

		urls := append([]string{}, args...)
		if batchFile != "" {
			fileURLs, err := readURLsFromFile(batchFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading batch file: %v\n", err)
				os.Exit(1)
			}
			urls = append(urls, fileURLs...)
		}
		if len(urls) == 0 {
			_ = cmd.Help()
			os.Exit(1)
		}

		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}

		tr := transport.NewHTTP(settings.ToTransportConfig())
		mgr := downloader.New(settings.ToManagerOptions(tr))

		jobs := resolveJobs(tr, urls, outputDir)

		// Sniff a file extension once a download lands, whatever the
		// display mode.
		mgr.Subscribe(&downloader.ObserverFuncs{
			OnFinish: func(url string) {
				for _, job := range jobs {
					if job.URL == url {
						ensureExtension(job.Dest)
						return
					}
				}
			},
		})

		if settings.General.PlainOutput {
			runPlain(mgr, jobs)
			return
		}
		runTUI(mgr, jobs)
	},
}

// resolveJobs probes each url for its suggested filename and pairs it
// with a destination path under outputDir. Probe failures fall back to
// the url path; the download itself will surface the real error.
func resolveJobs(tr *transport.HTTPTransport, urls []string, outputDir string) []tui.Job {
	ctx := context.Background()
	taken := make(map[string]bool)

	var jobs []tui.Job
	for _, url := range urls {
		name := ""
		if result, err := tr.Probe(ctx, url); err == nil {
			name = result.Filename
		} else {
			utils.Debug("probe %s failed: %v", url, err)
		}
		if name == "" {
			name = utils.FilenameFromURL(url, "download.bin")
		}

		dest := filepath.Join(outputDir, name)
		for i := 1; taken[dest]; i++ {
			dest = filepath.Join(outputDir, fmt.Sprintf("%s.%d", name, i))
		}
		taken[dest] = true

		jobs = append(jobs, tui.Job{URL: url, Dest: dest})
	}
	return jobs
}

// runTUI drives the bubbletea progress display until every download
// reaches a terminal state or the user quits.
func runTUI(mgr *downloader.Manager, jobs []tui.Job) {
	p := tea.NewProgram(tui.NewModel(mgr, jobs))
	mgr.Subscribe(tui.Bridge(p))

	go func() {
		for _, job := range jobs {
			if !mgr.Download(job.URL, job.Dest) {
				p.Send(tui.FailedMsg{URL: job.URL, Err: fmt.Errorf("could not start download")})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	mgr.Shutdown()
}

// runPlain logs one line per lifecycle event, suitable for scripts and
// dumb terminals. Progress lines are throttled by the sampler cadence
// already, so every callback prints.
func runPlain(mgr *downloader.Manager, jobs []tui.Job) {
	out := termenv.NewOutput(os.Stdout)
	ok := out.String("done").Foreground(out.Color("2"))
	bad := out.String("failed").Foreground(out.Color("1"))

	var wg sync.WaitGroup
	var printMu sync.Mutex

	mgr.Subscribe(&downloader.ObserverFuncs{
		OnStart: func(url string, resumed bool) {
			printMu.Lock()
			defer printMu.Unlock()
			if resumed {
				fmt.Printf("resuming %s\n", url)
			} else {
				fmt.Printf("downloading %s\n", url)
			}
		},
		OnProgress: func(p downloader.Progress) {
			if p.AverageSpeed == downloader.SpeedUnknown {
				return
			}
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Printf("%s: %s / %s (%.1f%%) %s ETA %s\n",
				p.URL,
				tui.FormatBytes(p.DownloadedSize),
				tui.FormatBytes(p.TotalSize),
				p.Percentage,
				tui.FormatSpeed(p.AverageSpeed),
				tui.FormatETA(p.TimeRemaining))
		},
		OnFinish: func(url string) {
			printMu.Lock()
			fmt.Printf("%s %s\n", ok, url)
			printMu.Unlock()
			wg.Done()
		},
		OnFail: func(url string, err error) {
			printMu.Lock()
			fmt.Printf("%s %s: %v\n", bad, url, err)
			printMu.Unlock()
			wg.Done()
		},
	})

	for _, job := range jobs {
		// Count the job before handing off: a fast transport can reach
		// the terminal callback before Download returns.
		wg.Add(1)
		if !mgr.Download(job.URL, job.Dest) {
			wg.Done()
			fmt.Fprintf(os.Stderr, "could not start %s\n", job.URL)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-done:
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "interrupted, canceling downloads")
		mgr.Shutdown()
		os.Exit(130)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("output", "o", "", "Output directory (default: settings default_download_dir)")
	rootCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	rootCmd.Flags().Bool("plain", false, "Line-based output instead of the TUI")
	rootCmd.Flags().String("proxy", "", "Proxy URL (http://, https:// or socks5://)")
	rootCmd.Flags().String("user-agent", "", "Override the User-Agent header")
	rootCmd.Flags().BoolP("insecure", "k", false, "Skip TLS certificate verification")
	rootCmd.SetVersionTemplate("sling version {{.Version}}\n")
}

// initializeEnvironment prepares the sling home directory and logging.
func initializeEnvironment() {
	dir := config.GetSlingDir()
	_ = os.MkdirAll(dir, 0o755)
	utils.ConfigureDebug(dir)
	utils.Debug("sling %s (%s) starting", Version, BuildTime)
}
