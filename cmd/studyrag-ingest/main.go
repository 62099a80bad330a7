// Package main is the entry point for the StudyRAG ingestion job.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/studyrag/internal/ingest"
)

func main() {
	ingest.NewApp().Run()
}
