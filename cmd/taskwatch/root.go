package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aristath/taskwatch/internal/config"
)

// envPrefix prefixes environment overrides, e.g. TASKWATCH_TIMEOUT=1m.
const envPrefix = "TASKWATCH"

// paths holds the configuration file locations.
type paths struct {
	global  string
	project string
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	p := &paths{}
	global, project, err := config.DefaultPaths()
	if err == nil {
		p.global, p.project = global, project
	}

	root := &cobra.Command{
		Use:   "taskwatch",
		Short: "Run batches of commands under heartbeat supervision",
		Long: `taskwatch runs a command once per input with bounded concurrency.

Every line a command writes to stdout counts as a heartbeat. A command that stays
silent longer than the timeout is asked to stop, and one that ignores the request
for longer than the grace period is killed together with its process group.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&p.global, "global-config", p.global, "global config file")
	root.PersistentFlags().StringVar(&p.project, "project-config", p.project, "project config file")

	root.AddCommand(newRunCmd(v, p), newConfigCmd(v, p))
	return root
}

// bindFlags binds every flag in fs to v under the flag's name. Environment
// variables use the same names with the TASKWATCH_ prefix and underscores.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// loadConfig merges defaults, config files, environment and flags, in increasing
// order of precedence, and validates the result.
func loadConfig(v *viper.Viper, p *paths) (*config.Config, error) {
	cfg, err := config.Load(p.global, p.project)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies every key set by a flag or environment variable into cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	duration := func(key string, dst *config.Duration) {
		if v.IsSet(key) {
			*dst = config.Duration(v.GetDuration(key))
		}
	}

	if v.IsSet("concurrency") {
		cfg.MaxConcurrency = v.GetInt("concurrency")
	}
	duration("timeout", &cfg.Timeout)
	duration("grace", &cfg.Grace)
	duration("poll", &cfg.PollInterval)
	if v.IsSet("observer") {
		cfg.Observer = v.GetString("observer")
	}
	if v.IsSet("clear") {
		cfg.ClearScreen = v.GetBool("clear")
	}
	if v.IsSet("metrics-addr") {
		cfg.MetricsAddr = v.GetString("metrics-addr")
	}
	if v.IsSet("otlp-endpoint") {
		cfg.OTLPEndpoint = v.GetString("otlp-endpoint")
	}
	if v.IsSet("retries") {
		cfg.Retries = v.GetInt("retries")
	}
	if v.IsSet("breaker") {
		cfg.Breaker.Enabled = v.GetBool("breaker")
	}
}

// runFlags registers the scheduling flags shared by every command that reads config.
func runFlags(fs *pflag.FlagSet) {
	fs.Int("concurrency", 0, "maximum tasks running at once")
	fs.Duration("timeout", 0, "maximum silence between heartbeats before a cancel is requested")
	fs.Duration("grace", 0, "time a task gets to acknowledge a cancel before it is killed")
	fs.Duration("poll", 0, "completion wait per control loop tick")
	fs.String("observer", "", "progress display: interactive, debug, silent or tui")
	fs.Bool("clear", true, "clear the screen before each interactive repaint")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	fs.String("otlp-endpoint", "", "export task spans to this OTLP/HTTP endpoint (host:port)")
	fs.Int("retries", 0, "re-run failed inputs this many times")
	fs.Bool("breaker", false, "stop dispatching after repeated consecutive failures")
}
