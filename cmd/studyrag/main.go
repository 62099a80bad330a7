// Package main is the entry point for the StudyRAG Assistant Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/studyrag/internal/assistant"
)

func main() {
	assistant.NewApp().Run()
}
