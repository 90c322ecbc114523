package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"botd/internal/common/fsutil"
	"botd/internal/config"
)

// cliFlags mirrors the config fields that can be overridden on the command line.
type cliFlags struct {
	configPath  string
	transport   string
	addr        string
	usbDevice   string
	metricsAddr string
	logFile     string
	logLevel    string
	logConsole  bool
	enableLogs  bool
	compat      bool
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:           "botd",
		Short:         "Remote-control agent: memory, input and system commands over a line protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cfg, nil)
		},
	}

	fl := root.PersistentFlags()
	fl.StringVarP(&f.configPath, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	fl.StringVar(&f.transport, "transport", "", "Client transport: socket|usb")
	fl.StringVar(&f.addr, "addr", "", "TCP listen address (default :6000)")
	fl.StringVar(&f.usbDevice, "usb-device", "", "USB gadget device path")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Status/metrics HTTP address; empty disables")
	fl.StringVar(&f.logFile, "log-file", "", "Log file path (size capped)")
	fl.StringVar(&f.logLevel, "log-level", "", "Minimum log level: debug|info|warn|error")
	fl.BoolVar(&f.logConsole, "log-console", false, "Mirror logs to stderr")
	fl.BoolVar(&f.enableLogs, "enable-logs", false, "Start with debug logging enabled")
	fl.BoolVar(&f.compat, "backwards-compat", true, "Legacy hex replies, version string and USB framing")

	root.AddCommand(newConfigCmd(f))
	return root
}

// newConfigCmd prints the effective configuration.
func newConfigCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, os.Getenv)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "transport=%s addr=%s usb_device=%s metrics_addr=%s platform=%s\n",
				cfg.Transport, cfg.Addr, cfg.USBDevice, cfg.MetricsAddr, cfg.Platform)
			fmt.Fprintf(out, "log_file=%s log_level=%s enable_logs=%t backwards_compat=%t\n",
				cfg.LogFile, cfg.LogLevel, cfg.EnableLogs, cfg.Compat())
			fmt.Fprintf(out, "queue_capacity=%d max_line_bytes=%d early_wake_us=%d\n",
				cfg.QueueCapacity, cfg.MaxLineBytes, cfg.EarlyWakeUS)
			fmt.Fprintf(out, "button_click_sleep_ms=%d key_sleep_ms=%d poll_rate_ms=%d finger_diameter=%d\n",
				cfg.ButtonClickSleepMS, cfg.KeySleepMS, cfg.PollRateMS, cfg.FingerDiameter)
			return nil
		},
	}
}

// resolveConfig layers defaults < file < BOTD_* environment < explicit flags.
func resolveConfig(cmd *cobra.Command, f *cliFlags, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		path, err := fsutil.ConfigFile(f.configPath)
		if err != nil {
			return cfg, err
		}
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg = cfg.ApplyEnv(getenv)

	fl := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	str("transport", &cfg.Transport, f.transport)
	str("addr", &cfg.Addr, f.addr)
	str("usb-device", &cfg.USBDevice, f.usbDevice)
	str("metrics-addr", &cfg.MetricsAddr, f.metricsAddr)
	str("log-file", &cfg.LogFile, f.logFile)
	str("log-level", &cfg.LogLevel, f.logLevel)
	if fl.Changed("log-console") {
		cfg.LogConsole = f.logConsole
	}
	if fl.Changed("enable-logs") {
		cfg.EnableLogs = f.enableLogs
	}
	if fl.Changed("backwards-compat") {
		compat := f.compat
		cfg.BackwardsCompat = &compat
	}

	cfg = cfg.Merge(config.Default())
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
