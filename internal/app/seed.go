package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"NewsSignals/internal/domain"
)

const defaultEmbeddingModel = "seed"

// SeedFile is a YAML fixture of stocks, articles and prices.
type SeedFile struct {
	EmbeddingModel string        `yaml:"embeddingModel"`
	Stocks         []SeedStock   `yaml:"stocks"`
	Articles       []SeedArticle `yaml:"articles"`
	Prices         []SeedPrice   `yaml:"prices"`
}

type SeedStock struct {
	Code         string   `yaml:"code"`
	Name         string   `yaml:"name"`
	Aliases      []string `yaml:"aliases"`
	Subsidiaries []string `yaml:"subsidiaries"`
}

type SeedArticle struct {
	Title       string    `yaml:"title"`
	Body        string    `yaml:"body"`
	Press       string    `yaml:"press"`
	URL         string    `yaml:"url"`
	PublishedAt time.Time `yaml:"publishedAt"`
	Keywords    []string  `yaml:"keywords"`
	Embedding   []float64 `yaml:"embedding"`
}

type SeedPrice struct {
	Code     string    `yaml:"code"`
	Date     time.Time `yaml:"date"`
	Close    *int64    `yaml:"close"`
	Diff     *int64    `yaml:"diff"`
	DiffRate *float64  `yaml:"diffRate"`
}

// SeedSummary counts the rows written by Seed.
type SeedSummary struct {
	Stocks   int `json:"stocks"`
	Articles int `json:"articles"`
	Prices   int `json:"prices"`
}

// LoadSeedFile decodes a fixture from disk.
func LoadSeedFile(path string) (SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// Seed writes a fixture through the repository. Keywords are stored under the
// configured extraction model and prompt version so the use cases read them.
func (a *Application) Seed(ctx context.Context, seed SeedFile) (SeedSummary, error) {
	var sum SeedSummary

	for _, s := range seed.Stocks {
		if err := a.repo.UpsertStock(ctx, s.Code, s.Name); err != nil {
			return sum, err
		}
		for _, alias := range s.Aliases {
			if err := a.repo.AddAlias(ctx, alias, s.Code); err != nil {
				return sum, err
			}
		}
		for _, sub := range s.Subsidiaries {
			if err := a.repo.AddSubsidiary(ctx, sub, s.Code); err != nil {
				return sum, err
			}
		}
		sum.Stocks++
	}

	model := seed.EmbeddingModel
	if model == "" {
		model = defaultEmbeddingModel
	}
	for _, art := range seed.Articles {
		id, err := a.repo.InsertArticle(ctx, domain.Article{
			Title:       art.Title,
			Body:        art.Body,
			Press:       art.Press,
			URL:         art.URL,
			PublishedAt: art.PublishedAt,
		})
		if err != nil {
			return sum, err
		}
		if err := a.repo.SaveExtraction(ctx, id, art.Keywords, a.cfg.Extraction.Model, a.cfg.Extraction.PromptVersion); err != nil {
			return sum, err
		}
		if len(art.Embedding) > 0 {
			if err := a.repo.SaveEmbedding(ctx, id, model, art.Embedding); err != nil {
				return sum, err
			}
		}
		sum.Articles++
	}

	for _, p := range seed.Prices {
		if err := a.repo.SavePrice(ctx, domain.PriceRow{
			StockCode: p.Code,
			TradeDate: p.Date,
			Close:     p.Close,
			Diff:      p.Diff,
			DiffRate:  p.DiffRate,
		}); err != nil {
			return sum, err
		}
		sum.Prices++
	}

	a.logger.Info("seed loaded", "stocks", sum.Stocks, "articles", sum.Articles, "prices", sum.Prices)
	return sum, nil
}
