package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mediastash/internal/format"
	"mediastash/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRecordList(recs []models.FileRecord) error {
	for _, rec := range recs {
		if err := writePlain("%s\n", formatRecordLine(&rec)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordDetail(rec *models.FileRecord) error {
	lines := []string{
		fmt.Sprintf("hash: %s", rec.FileHash),
		fmt.Sprintf("path: %s", rec.FilePath),
		fmt.Sprintf("size: %d", rec.FileSize),
		fmt.Sprintf("category: %s", rec.Category),
		fmt.Sprintf("created_at: %s", formatTime(rec.CreatedAt)),
	}

	if rec.HasConverted() {
		lines = append(lines,
			fmt.Sprintf("converted_path: %s", rec.ConvertedPath),
			fmt.Sprintf("converted_hash: %s", rec.ConvertedHash),
			fmt.Sprintf("converted_size: %d", *rec.ConvertedSize),
		)
	}

	for guild, usage := range rec.GuildUsage {
		line := fmt.Sprintf("guild %s: sent %d", guild, usage.SendCount)
		if usage.LastSent != nil {
			line += " last " + formatTime(*usage.LastSent)
		}
		lines = append(lines, line)
	}

	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatRecordLine(rec *models.FileRecord) string {
	marker := " "
	if rec.HasConverted() {
		marker = "c"
	}
	return fmt.Sprintf("%s %s [%s] %d %s", marker, shortHash(rec.FileHash), rec.Category, rec.FileSize, rec.FilePath)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
