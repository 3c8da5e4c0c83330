package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/partyzanex/mydump/pkg/config"
	"github.com/partyzanex/mydump/pkg/dump"
	"github.com/partyzanex/mydump/pkg/mysql"
	"github.com/partyzanex/mydump/pkg/output"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	configPath, _ := pflag.CommandLine.GetString("config")

	cfg, err := config.Load(configPath, pflag.CommandLine)
	if err != nil {
		fatal(err)
	}

	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debugf("config: %s", spew.Sdump(cfg.Redacted()))
	}

	opts, err := cfg.Options()
	if err != nil {
		fatal(err)
	}

	compression, err := output.ParseCompression(cfg.Output.Compress)
	if err != nil {
		fatal(err)
	}

	writerOpts := []output.Option{
		output.WithCompression(compression),
		output.WithChecksum(cfg.Output.Checksum),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		logrus.Warn("interrupted, stopping dump")
		cancel()
	}()

	var dir *output.DirWriter

	if cfg.Output.Dir {
		dir, err = output.NewDirWriter(cfg.Output.Path, writerOpts...)
		if err != nil {
			fatal(err)
		}
	}

	var (
		bar     *progressbar.ProgressBar
		hookErr error
		once    sync.Once
	)

	if cfg.Progress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Dumping tables"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("tables"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSpinnerType(14),
		)
	}

	d := &dump.Dumper{
		Connect: mysql.Connect,
		Workers: cfg.Threads,
		Verbose: cfg.Verbose,
		OnTable: func(table *dump.Table) {
			if dir != nil {
				if err := output.WriteTable(dir, table); err != nil {
					once.Do(func() {
						hookErr = err
						cancel()
					})
				}
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		},
	}

	start := time.Now()

	result, err := d.Dump(ctx, opts)

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if hookErr != nil {
		err = hookErr
	}

	if err != nil {
		if dir != nil {
			_ = dir.Close()
		}

		fatal(err)
	}

	var size int64

	if dir != nil {
		if err := dir.Close(); err != nil {
			fatal(err)
		}

		for _, f := range dir.Files() {
			size += f.Written()
		}
	} else {
		size, err = writeFile(cfg.Output.Path, result, writerOpts)
		if err != nil {
			fatal(err)
		}
	}

	if result.MasterStatus != nil {
		logrus.Infof("binlog position: %s:%d", result.MasterStatus.File, result.MasterStatus.Position)
	}

	if cfg.Output.Manifest != "" {
		err = output.WriteManifest(cfg.Output.Manifest, output.NewManifest(opts.Connection.Database, result))
		if err != nil {
			fatal(err)
		}
	}

	logrus.Infof("dumped %d tables to %s (%s) in %s",
		len(result.Tables), cfg.Output.Path, humanize.Bytes(uint64(size)), time.Since(start).Round(time.Millisecond))
}

func writeFile(path string, result *dump.DumpReturn, opts []output.Option) (int64, error) {
	w, err := output.NewFileWriter(filepath.Dir(path), filepath.Base(path), opts...)
	if err != nil {
		return 0, err
	}

	n, err := output.WriteDump(w, result)
	if err != nil {
		_ = w.Close()
		return n, err
	}

	if err := w.Close(); err != nil {
		return n, errors.Wrapf(err, "unable to close %s", w.Path())
	}

	return n, nil
}

func fatal(err error) {
	logrus.Error(err)
	os.Exit(1)
}
