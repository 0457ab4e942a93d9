package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/conceptlab-backend/internal/app"
)

type fixtureFile struct {
	Datasets []struct {
		Namespace string           `yaml:"namespace"`
		Name      string           `yaml:"name"`
		Rows      []map[string]any `yaml:"rows"`
	} `yaml:"datasets"`
}

func main() {
	var path string
	flag.StringVar(&path, "fixtures", "fixtures/datasets.yaml", "dataset fixture file to import")
	flag.Parse()

	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("read fixtures: %v\n", err)
		os.Exit(1)
	}
	var fixtures fixtureFile
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		fmt.Printf("parse fixtures: %v\n", err)
		os.Exit(1)
	}
	if len(fixtures.Datasets) == 0 {
		fmt.Println("no datasets in fixture file")
		return
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	total := 0
	for _, ds := range fixtures.Datasets {
		n, err := application.Services.Dataset.ImportRows(ctx, ds.Namespace, ds.Name, ds.Rows)
		if err != nil {
			fmt.Printf("import %s/%s: %v\n", ds.Namespace, ds.Name, err)
			os.Exit(1)
		}
		fmt.Printf("imported %d rows into %s/%s\n", n, ds.Namespace, ds.Name)
		total += n
	}
	fmt.Printf("done: %d rows across %d datasets\n", total, len(fixtures.Datasets))
}
