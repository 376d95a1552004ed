package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	visionquery "github.com/menta2k/vision-query"
	"github.com/menta2k/vision-query/internal/config"
	"github.com/menta2k/vision-query/pkg/processing"
	"github.com/menta2k/vision-query/pkg/types"
	"github.com/menta2k/vision-query/pkg/vlm"
)

func main() {
	var in, configPath, provider, model, prompt string
	var maxTokens, sendSize int
	var asJSON, list, writeConfig bool

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/gif/webp)")
	flag.StringVar(&configPath, "config", "", "YAML config file (default: "+config.GetConfigPath()+" if it exists)")
	flag.StringVar(&provider, "provider", "", "provider: openai|gemini|ollama (overrides config)")
	flag.StringVar(&model, "model", "", "model name as listed by the provider (overrides config)")
	flag.StringVar(&prompt, "prompt", "", "text prompt sent with the image (overrides config)")
	flag.IntVar(&maxTokens, "max-tokens", 0, "completion token budget, openai/ollama only (overrides config)")
	flag.IntVar(&sendSize, "sendsize", -1, "max long side sent to the model (px), 0=original (overrides config)")
	flag.BoolVar(&asJSON, "json", false, "print the response as JSON")
	flag.BoolVar(&list, "list", false, "list the live model catalog of -provider (or all providers, reporting each failure inline) and exit")
	flag.BoolVar(&writeConfig, "write-config", false, "write the effective config to -config (or the default path) and exit")
	flag.Parse()

	if configPath == "" {
		if _, err := os.Stat(config.GetConfigPath()); err == nil {
			configPath = config.GetConfigPath()
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	applyFlags(cfg, provider, model, prompt, maxTokens, sendSize)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	if writeConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := cfg.SaveToFile(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", path)
		return
	}

	vq := visionquery.NewWithOptions(cfg.Options())
	ctx := context.Background()

	if list {
		// without -provider every backend is listed
		var providers []visionquery.Provider
		if provider != "" {
			p, _ := visionquery.ParseProvider(cfg.Query.Provider)
			providers = append(providers, p)
		}
		results := vq.Survey(ctx, providers...)
		if printCatalogs(os.Stdout, results) == len(results) {
			log.Fatal("no catalog could be fetched")
		}
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in input.jpg|URL [-provider openai|gemini|ollama] [-model name] [-prompt text] [-max-tokens 300] [-sendsize 1536] [-json]", filepath.Base(os.Args[0]))
	}

	processor := processing.NewProcessor()
	img, err := processor.LoadImageSmart(in)
	if err != nil {
		log.Fatal(err)
	}
	b := img.Bounds()
	img = processor.Downscale(img, cfg.Query.SendSize)
	if sb := img.Bounds(); sb != b {
		log.Printf("downscaled %dx%d -> %dx%d", b.Dx(), b.Dy(), sb.Dx(), sb.Dy())
	}

	resp, err := vq.Run(ctx, types.Request{
		Provider:  cfg.Query.Provider,
		Model:     cfg.Query.Model,
		Prompt:    cfg.Query.Prompt,
		Image:     img,
		MaxTokens: cfg.Query.MaxTokens,
	})
	if err != nil {
		fatalQuery(err)
	}

	if asJSON {
		js, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(js))
		return
	}
	fmt.Println(resp.Text)
}

func applyFlags(cfg *config.Config, provider, model, prompt string, maxTokens, sendSize int) {
	if provider != "" {
		cfg.Query.Provider = strings.ToLower(provider)
	}
	if model != "" {
		cfg.Query.Model = model
	}
	if prompt != "" {
		cfg.Query.Prompt = prompt
	}
	if maxTokens > 0 {
		cfg.Query.MaxTokens = maxTokens
	}
	if sendSize >= 0 {
		cfg.Query.SendSize = sendSize
	}
}

// printCatalogs writes each provider's models, or its error, in name order
// and returns how many providers failed.
func printCatalogs(w io.Writer, results map[visionquery.Provider]visionquery.CatalogResult) int {
	names := make([]string, 0, len(results))
	for p := range results {
		names = append(names, string(p))
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		res := results[visionquery.Provider(name)]
		fmt.Fprintf(w, "%s:\n", name)
		if res.Err != nil {
			failed++
			fmt.Fprintf(w, "  error: %v\n", res.Err)
			continue
		}
		for _, m := range res.Models {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	return failed
}

// fatalQuery exits with a hint matching the failure kind
func fatalQuery(err error) {
	var ve *vlm.Error
	switch {
	case errors.Is(err, vlm.ErrConfiguration):
		log.Fatalf("configuration error: %v", err)
	case errors.As(err, &ve) && ve.Kind == vlm.KindUnsupportedModel:
		log.Fatalf("%v\nrerun with -model set to one of the models above, or -list to see them", err)
	default:
		log.Fatalf("query failed: %v", err)
	}
}
