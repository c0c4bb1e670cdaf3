package main

import (
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"sketch-relay/internal/config"
	"sketch-relay/internal/db"
)

type promptRecord struct {
	Category string
	Text     string
}

func main() {
	filePath := flag.String("file", "prompts.csv", "path to prompts csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("failed to open prompts file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var loaded, skipped int
	for line := 0; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to read prompts: %v", err)
		}
		record, ok := parseRow(line, row)
		if !ok {
			skipped++
			continue
		}
		entry := db.RandomPrompt{Category: record.Category, Text: record.Text}
		if err := conn.FirstOrCreate(&entry, db.RandomPrompt{Text: entry.Text}).Error; err != nil {
			log.Fatalf("failed to upsert prompt %q: %v", record.Text, err)
		}
		loaded++
	}

	log.Printf("prompt library loaded count=%d skipped=%d", loaded, skipped)
}

// parseRow accepts "category,text" rows, skipping the header and blanks.
func parseRow(line int, row []string) (promptRecord, bool) {
	if line == 0 || len(row) < 2 {
		return promptRecord{}, false
	}
	record := promptRecord{
		Category: strings.TrimSpace(row[0]),
		Text:     strings.TrimSpace(row[1]),
	}
	if record.Text == "" {
		return promptRecord{}, false
	}
	return record, true
}
