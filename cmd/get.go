package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tinoosan/fetchd/internal/config"
	"github.com/tinoosan/fetchd/internal/downloadcfg"
	"github.com/tinoosan/fetchd/internal/fetch"
	"github.com/tinoosan/fetchd/internal/logging"
	"github.com/tinoosan/fetchd/internal/service"
	"github.com/tinoosan/fetchd/internal/session"
)

var errCancelled = errors.New("download cancelled")

type getOptions struct {
	URL        string
	Dir        string
	ChunkSize  int
	Retries    int
	RetryDelay time.Duration
	Policy     downloadcfg.CollisionPolicy
	UserAgent  string
	Verbose    bool
	NoProgress bool
	Fetcher    session.Fetcher
}

var getFlags = struct {
	dir        string
	chunkSize  int
	retries    int
	policy     string
	verbose    bool
	noProgress bool
}{}

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Download a single URL in the foreground",
	Long: `Download a single URL to a local file with a live progress bar.
Press Ctrl-C to cancel; the partial file is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		o := getOptions{
			URL:        args[0],
			Dir:        cfg.DownloadDir,
			ChunkSize:  cfg.ChunkSize,
			Retries:    getFlags.retries,
			RetryDelay: time.Second,
			Policy:     downloadcfg.ParseCollisionPolicy(cfg.CollisionPolicy),
			UserAgent:  cfg.UserAgent,
			Verbose:    getFlags.verbose,
			NoProgress: getFlags.noProgress,
		}
		if cmd.Flags().Changed("dir") {
			o.Dir = getFlags.dir
		}
		if cmd.Flags().Changed("chunk-size") {
			o.ChunkSize = getFlags.chunkSize
		}
		if cmd.Flags().Changed("on-exists") {
			o.Policy = downloadcfg.ParseCollisionPolicy(getFlags.policy)
			if !o.Policy.Valid() {
				return fmt.Errorf("invalid --on-exists %q", getFlags.policy)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, err = runGet(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		return err
	},
}

func init() {
	getCmd.Flags().StringVarP(&getFlags.dir, "dir", "d", ".", "Directory to save the file in")
	getCmd.Flags().IntVar(&getFlags.chunkSize, "chunk-size", session.DefaultChunkSize, "Bytes moved per read/write")
	getCmd.Flags().IntVarP(&getFlags.retries, "retries", "r", 3, "Resume attempts after a failure")
	getCmd.Flags().StringVar(&getFlags.policy, "on-exists", "", "What to do when the file exists: error, overwrite or rename")
	getCmd.Flags().BoolVarP(&getFlags.verbose, "verbose", "v", false, "Log session activity to stderr")
	getCmd.Flags().BoolVar(&getFlags.noProgress, "no-progress", false, "Hide the progress bar")
}

// runGet downloads o.URL and blocks until the session is terminal, retries
// are exhausted or ctx is cancelled. A cancelled ctx cancels the session.
func runGet(ctx context.Context, out, errOut io.Writer, o getOptions) (session.Snapshot, error) {
	rawURL, err := service.ValidateURL(o.URL)
	if err != nil {
		return session.Snapshot{}, err
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	name, err := downloadcfg.ResolveTarget(o.Dir, session.FileName(rawURL), o.Policy)
	if err != nil {
		return session.Snapshot{}, err
	}
	target := filepath.Join(o.Dir, name)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if o.Verbose {
		l, _, err := logging.New(logging.Config{Level: "debug", Format: "text"}, errOut)
		if err != nil {
			return session.Snapshot{}, err
		}
		log = l
	}
	fetcher := o.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(fetch.Options{UserAgent: o.UserAgent})
	}

	notify := make(chan struct{}, 1)
	observer := session.ObserverFunc(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	// The session gets its own context so Ctrl-C can move it to Cancelled
	// before in-flight I/O is aborted.
	sctx, abort := context.WithCancel(context.Background())
	defer abort()
	s := session.New(sctx, rawURL,
		session.WithPath(target),
		session.WithChunkSize(o.ChunkSize),
		session.WithFetcher(fetcher),
		session.WithLogger(log),
		session.WithObserver(observer),
	)

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(filepath.Base(target)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetVisibility(!o.NoProgress),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)

	interrupted := ctx.Done()
	stopping := false
	stopSession := func() {
		interrupted = nil
		stopping = true
		s.Cancel()
		abort()
	}
	retries := o.Retries
	var size int64 = session.UnknownSize
	for {
		select {
		case <-interrupted:
			stopSession()
		case <-notify:
		}

		snap := s.Snapshot()
		if snap.Size != size && snap.Size >= 0 {
			size = snap.Size
			bar.ChangeMax64(size)
		}
		_ = bar.Set64(snap.Transferred)

		switch snap.State {
		case session.Complete:
			_ = bar.Finish()
			fmt.Fprintln(out, fSuccess(fmt.Sprintf("%s Downloaded %s (%s)", symbols["pass"], snap.Path, formatBytes(snap.Size))))
			return snap, nil
		case session.Cancelled:
			fmt.Fprintln(out)
			fmt.Fprintln(out, fWarning(fmt.Sprintf("%s Cancelled at %s, partial file kept at %s", symbols["warning"], formatBytes(snap.Transferred), snap.Path)))
			return snap, errCancelled
		case session.Error:
			if stopping {
				s.Cancel()
				continue
			}
			if retries <= 0 {
				fmt.Fprintln(out)
				return snap, fmt.Errorf("download failed (%s): %w", session.Kind(snap.Err), snap.Err)
			}
			retries--
			fmt.Fprintln(errOut, fDetail(fmt.Sprintf("%s %v, resuming from %s", symbols["arrow"], snap.Err, formatBytes(snap.Transferred))))
			select {
			case <-time.After(o.RetryDelay):
				s.Resume()
			case <-interrupted:
				stopSession()
			}
		}
	}
}
