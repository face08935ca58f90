// Command brain is a small CLI that exercises the hybrid memory engine
// directly: store, recall, list, and forget against a workspace
// directory, with no network surface beyond the configured embedder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brainmem/memcore/memory"
	"github.com/brainmem/memcore/pkg/config"
)

func main() {
	workspace := flag.String("workspace", config.DefaultWorkspaceDir(), "workspace directory (database lives at <workspace>/memory/brain.db)")
	provider := flag.String("provider", "", `embedder provider tag: "openai", "custom:<url>", or empty for keyword-only`)
	apiKey := flag.String("api-key", os.Getenv("BRAIN_EMBEDDING_API_KEY"), "embedding API key")
	model := flag.String("model", "text-embedding-3-small", "embedding model name")
	dimension := flag.Int("dimension", 0, "embedding dimension (0 disables embedding)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if args[0] == "config" {
		runConfigCmd(*workspace, args[1:])
		return
	}

	// env.config holds persisted defaults (see "config set"); explicit
	// flags always win over it.
	explicit := explicitFlags()
	envCfg := config.ReadEnvConfig(envConfigPath(*workspace))
	if !explicit["provider"] {
		if v, ok := envCfg["PROVIDER"]; ok {
			*provider = v
		}
	}
	if !explicit["api-key"] {
		if v, ok := envCfg["API_KEY"]; ok {
			*apiKey = v
		}
	}
	if !explicit["model"] {
		if v, ok := envCfg["MODEL"]; ok {
			*model = v
		}
	}
	if !explicit["dimension"] {
		if v, ok := envCfg["DIMENSION"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dimension = n
			}
		}
	}

	cfg := config.DefaultMemoryConfig()
	cfg.WorkspaceDir = *workspace
	cfg.Provider = *provider
	cfg.APIKey = *apiKey
	cfg.Model = *model
	cfg.Dimension = *dimension

	mem, err := memory.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("[FATAL] open memory engine: %v", err)
	}

	ctx := context.Background()
	switch args[0] {
	case "store":
		if len(args) != 3 {
			log.Fatalf("usage: brain store <key> <content>")
		}
		if err := mem.Store(ctx, args[1], args[2], memory.CategoryCore); err != nil {
			log.Fatalf("[FAIL] store: %v", err)
		}
		log.Printf("[OK] stored %q", args[1])

	case "recall":
		if len(args) != 2 {
			log.Fatalf("usage: brain recall <query>")
		}
		results, err := mem.Recall(ctx, args[1], 10)
		if err != nil {
			log.Fatalf("[FAIL] recall: %v", err)
		}
		for _, r := range results {
			score := 0.0
			if r.Score != nil {
				score = *r.Score
			}
			fmt.Printf("%.4f\t%s\t%s\n", score, r.Key, r.Content)
		}

	case "list":
		results, err := mem.List(ctx, nil)
		if err != nil {
			log.Fatalf("[FAIL] list: %v", err)
		}
		for _, r := range results {
			fmt.Printf("%s\t%s\t%s\n", r.Key, r.Category, r.Content)
		}

	case "forget":
		if len(args) != 2 {
			log.Fatalf("usage: brain forget <key>")
		}
		removed, err := mem.Forget(ctx, args[1])
		if err != nil {
			log.Fatalf("[FAIL] forget: %v", err)
		}
		if removed {
			log.Printf("[OK] forgot %q", args[1])
		} else {
			log.Printf("[WARN] no such key %q", args[1])
		}

	default:
		usage()
		os.Exit(1)
	}
}

// explicitFlags reports which named flags the caller actually passed, so
// a persisted env.config default only applies when the flag was not
// passed on the command line.
func explicitFlags() map[string]bool {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func envConfigPath(workspace string) string {
	return filepath.Join(workspace, "env.config")
}

// runConfigCmd implements "brain config set KEY=VALUE ..." and
// "brain config show", persisting settings to <workspace>/env.config via
// the shared env.config KEY=VALUE format.
func runConfigCmd(workspace string, args []string) {
	path := envConfigPath(workspace)
	if len(args) == 0 {
		log.Fatalf("usage: brain config <set|show> ...")
	}

	switch args[0] {
	case "set":
		updates := map[string]string{}
		for _, kv := range args[1:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				log.Fatalf("invalid KEY=VALUE pair: %q", kv)
			}
			updates[strings.ToUpper(parts[0])] = parts[1]
		}
		if len(updates) == 0 {
			log.Fatalf("usage: brain config set KEY=VALUE [KEY=VALUE ...]")
		}
		if err := os.MkdirAll(workspace, 0o755); err != nil {
			log.Fatalf("[FAIL] create workspace dir: %v", err)
		}
		if err := config.MergeEnvConfig(path, updates); err != nil {
			log.Fatalf("[FAIL] write env.config: %v", err)
		}
		log.Printf("[OK] updated %s", path)

	case "show":
		for k, v := range config.ReadEnvConfig(path) {
			fmt.Printf("%s=%s\n", k, v)
		}

	default:
		log.Fatalf("usage: brain config <set|show> ...")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: brain [flags] <store|recall|list|forget|config> ...")
	flag.PrintDefaults()
}
