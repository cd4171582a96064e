package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oarkflow/groupaccess"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		handleValidate()
	case "convert":
		handleConvert()
	case "stats":
		handleStats()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("groupaccess-config - Configuration tool for groupaccess")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  groupaccess-config validate <file>         - Validate configuration")
	fmt.Println("  groupaccess-config convert <input> <output> - Convert between formats")
	fmt.Println("  groupaccess-config stats <file>            - Show configuration statistics")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: groupaccess-config validate <file>")
		os.Exit(1)
	}
	cfg := mustLoad(os.Args[2])
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s is valid\n", os.Args[2])
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: groupaccess-config convert <input> <output>")
		os.Exit(1)
	}
	cfg := mustLoad(os.Args[2])
	if err := save(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: groupaccess-config stats <file>")
		os.Exit(1)
	}
	cfg := mustLoad(os.Args[2])
	types := make(map[string]int)
	for _, e := range cfg.Enablers {
		types[e.EntityType]++
	}
	fmt.Printf("Content enablers: %d (%d entity types)\n", len(cfg.Enablers), len(types))
	fmt.Printf("Ranked roles:     %d (+%d baseline)\n", len(cfg.RoleRanking), len(cfg.BaselineRoles))
	fmt.Printf("Debug:            messages=%v log=%v\n", cfg.Debug.Messages, cfg.Debug.Log)
	fmt.Printf("Decision cache:   ttl=%dms\n", cfg.Cache.DecisionTTLMillis)
}

func mustLoad(path string) *groupaccess.Config {
	cfg, err := groupaccess.NewConfigLoader().LoadFile(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func save(cfg *groupaccess.Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		return fmt.Errorf("unsupported output extension: %s", path)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
