package deploy

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces the file-set for a service from its idea text
type Generator interface {
	Generate(ctx context.Context, idea string) (map[string]string, error)
}

// ScaffoldGenerator produces a minimal runnable FastAPI service from a
// static template. It never fails, which also makes it the fallback when
// the model-backed generator is unavailable.
type ScaffoldGenerator struct{}

// NewScaffoldGenerator creates a ScaffoldGenerator
func NewScaffoldGenerator() *ScaffoldGenerator {
	return &ScaffoldGenerator{}
}

const scaffoldMain = `from fastapi import FastAPI

app = FastAPI(title=%q)


@app.get("/")
def root() -> dict[str, str]:
    return {"service": %q, "status": "ok"}


@app.get("/health")
def health() -> dict[str, str]:
    return {"status": "ok"}
`

const scaffoldRequirements = `fastapi
uvicorn
`

// Generate returns the scaffold file-set
func (g *ScaffoldGenerator) Generate(ctx context.Context, idea string) (map[string]string, error) {
	// Ideas are validated by rune count, so cut on a rune boundary
	title := idea
	if runes := []rune(title); len(runes) > 60 {
		title = strings.TrimSpace(string(runes[:60]))
	}
	return map[string]string{
		"main.py":          fmt.Sprintf(scaffoldMain, title, title),
		"requirements.txt": scaffoldRequirements,
	}, nil
}
