package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cosyq/cmd/annogen/generator"
)

func main() {
	projects := flag.String("projects", "GET,BASE", "Comma-separated project names")
	distribution := flag.String("distribution", "uniform", "Distribution of users and corpora: uniform, zipf")
	outDir := flag.String("out", "./dumps", "Output directory for the JSONL dumps")
	count := flag.Int("count", 500, "Number of annotations per project")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	cfg := generator.Config{
		Projects:     strings.Split(*projects, ","),
		Count:        *count,
		Distribution: *distribution,
		Seed:         *seed,
		Now:          time.Now(),
	}

	fmt.Printf("Generating %d annotations for %s (Distribution: %s) to %s...\n", cfg.Count, *projects, cfg.Distribution, *outDir)

	if err := generator.Save(*outDir, generator.Generate(cfg)); err != nil {
		fmt.Printf("Failed to save dumps: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
