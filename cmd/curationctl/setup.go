package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

const configTemplate = `# Curation gate configuration. Every key can be overridden with a
# CURATION_ environment variable, e.g. CURATION_LLM_PROVIDER=openai.
storage:
  engine: sqlite
  data_path: %s

llm:
  provider: ollama
  ollama_url: http://localhost:11434
  ollama_model: qwen2.5:7b
  embedding_model: nomic-embed-text
  request_timeout: 30s

curation:
  analysis_timeout: 30s
  max_concurrent_analyses: 4
  policy_path: %s
  watch_policy: true

logging:
  level: info
  format: json

maintenance:
  interval: 1h
  backup_interval: 24h
`

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter curation.yaml and policy.yaml",
		Long: `Writes curation.yaml and policy.yaml into dir (default: the working
directory). The policy file holds the built-in decision thresholds so they can
be tuned per namespace. Existing files are kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return writeStarterFiles(cmd.OutOrStdout(), dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func writeStarterFiles(out io.Writer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	policy, err := yaml.Marshal(decision.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	policyPath := filepath.Join(dir, "policy.yaml")
	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, "curation.yaml"), []byte(fmt.Sprintf(configTemplate, filepath.Join(dir, "data"), policyPath))},
		{policyPath, policy},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !force {
			fmt.Fprintf(out, "kept     %s\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(out, "wrote    %s\n", f.path)
	}
	return nil
}

// check is one doctor probe. A warning does not make the gate unusable.
type check struct {
	name    string
	detail  string
	err     error
	warning bool
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configuration, database and models are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			checks := runDoctor(cmd.Context(), configPath, http.DefaultClient)
			return reportChecks(cmd.OutOrStdout(), checks)
		},
	}
}

func runDoctor(ctx context.Context, configPath string, client *http.Client) []check {
	cfg, err := config.Load(configPath)
	if err == nil {
		err = cfg.Validate()
	}
	checks := []check{{name: "config", detail: configPath, err: err}}
	if err != nil {
		return checks
	}

	if cfg.Storage.Engine == "sqlite" {
		checks = append(checks, check{name: "data path", detail: cfg.Storage.DataPath, err: writable(cfg.Storage.DataPath)})
	}

	policyDetail := "built-in defaults"
	if cfg.Curation.PolicyPath != "" {
		policyDetail = cfg.Curation.PolicyPath
	}
	_, err = decision.LoadPolicy(cfg.Curation.PolicyPath)
	checks = append(checks, check{name: "policy", detail: policyDetail, err: err})

	if p := cfg.Curation.CuratorProfilePath; p != "" {
		_, err := (&app.FileCuratorResolver{Path: p}).ResolveCurator(ctx)
		checks = append(checks, check{name: "curator profile", detail: p, err: err})
	}

	a, err := app.New(ctx, cfg, app.Options{Logger: logging.Discard()})
	dbCheck := check{name: "database", detail: cfg.Storage.Engine, err: err}
	if err == nil {
		page, err := a.Store.ListPending(ctx, storage.ListOptions{Limit: 1})
		if err != nil {
			dbCheck.err = err
		} else {
			dbCheck.detail = fmt.Sprintf("%s, %d pending", cfg.Storage.Engine, page.Total)
		}
		_ = a.Close()
	}
	checks = append(checks, dbCheck)

	// Embeddings come from ollama unless openai is the curator provider.
	if cfg.LLM.Provider != "openai" || cfg.LLM.FallbackProvider == "ollama" {
		checks = append(checks, check{
			name:    "ollama",
			detail:  cfg.LLM.OllamaURL,
			err:     probeOllama(ctx, client, cfg.LLM.OllamaURL),
			warning: true,
		})
	}
	return checks
}

// reportChecks prints one line per check and fails when any non-warning check failed.
func reportChecks(out io.Writer, checks []check) error {
	failed := 0
	for _, c := range checks {
		switch {
		case c.err == nil:
			fmt.Fprintf(out, "%s %-16s %s\n", color.GreenString("ok  "), c.name, c.detail)
		case c.warning:
			fmt.Fprintf(out, "%s %-16s %s: %v\n", color.YellowString("warn"), c.name, c.detail, c.err)
		default:
			failed++
			fmt.Fprintf(out, "%s %-16s %s: %v\n", color.RedString("fail"), c.name, c.detail, c.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".curation-write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// probeOllama checks that the embedding host answers; it does not pull models.
func probeOllama(ctx context.Context, client *http.Client, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return nil
}
