package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"loanflow/pkg/core/pipeline"
)

func main() {
	// Load environment variables
	godotenv.Load()

	rulesDir := flag.String("rules", "configs/rules", "directory of per-document rule files")
	signatures := flag.String("signatures", "configs/signatures.yaml", "mega-PDF signature file")
	outputDir := flag.String("out", "output", "artifact output directory")
	mismoVersion := flag.String("mismo", "", "MISMO version override (default 3.4)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("usage: pipeline [flags] <document> [<document> ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	runner := pipeline.NewRunner(pipeline.Config{
		RulesDir:       *rulesDir,
		SignaturesPath: *signatures,
		OutputDir:      *outputDir,
		MISMOVersion:   *mismoVersion,
	})

	failed := 0
	for _, input := range flag.Args() {
		fmt.Printf("[Pipeline] processing %s\n", input)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		result, err := runner.Run(ctx, input)
		cancel()
		if err != nil {
			fmt.Printf("[Pipeline] FAILED %s: %v\n", input, err)
			failed++
			continue
		}
		fmt.Printf("[Pipeline] %s -> %s (%s, %d chunk(s), %d issue(s), %s)\n",
			input, result.RunDir, result.Classification.DocumentCategory,
			result.Chunks, len(result.Issues), result.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		os.Exit(1)
	}
}
