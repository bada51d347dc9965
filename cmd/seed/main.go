package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/database"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/utils"

	"github.com/google/uuid"
)

// document is one line of the JSONL input.
type document struct {
	Title     string `json:"title"`
	SourceURI string `json:"source_uri"`
	Content   string `json:"content"`
}

func main() {
	file := flag.String("file", "knowledge.jsonl", "JSONL file with title, source_uri and content per line")
	indexID := flag.String("index", "", "knowledge index id (defaults to KNOWLEDGE_INDEX_ID)")
	chunkSize := flag.Int("chunk", 1500, "chunk size in characters")
	overlap := flag.Int("overlap", 200, "chunk overlap in characters")
	flag.Parse()

	cfg := config.Load()
	if *indexID == "" {
		*indexID = cfg.Knowledge.IndexID
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	embedder, err := embedding.NewProvider(embedding.Config{
		Provider:      cfg.Ai.EmbeddingProvider,
		Model:         cfg.Ai.EmbeddingModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer f.Close()

	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var docs, passages int
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			log.Printf("Warn: line %d is not valid JSON, skipping: %v", line, err)
			continue
		}
		if doc.SourceURI == "" || strings.TrimSpace(doc.Content) == "" {
			log.Printf("Warn: line %d has no source_uri or content, skipping", line)
			continue
		}

		chunks := utils.SplitText(doc.Content, *chunkSize, *overlap)
		rows := make([]*entity.KnowledgePassage, 0, len(chunks))
		for i, chunk := range chunks {
			vec, err := embedder.Embed(ctx, chunk)
			if err != nil {
				log.Fatalf("Error: embedding chunk %d of %s: %v", i, doc.SourceURI, err)
			}
			rows = append(rows, &entity.KnowledgePassage{
				Id:        uuid.New(),
				IndexId:   *indexID,
				Title:     doc.Title,
				SourceUri: doc.SourceURI,
				Content:   chunk,
				Embedding: vec,
			})
		}

		if err := insert(ctx, uow, rows); err != nil {
			log.Fatalf("Error: storing %s: %v", doc.SourceURI, err)
		}
		docs++
		passages += len(rows)
		log.Printf("Seeded %s (%d passages)", doc.SourceURI, len(rows))
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Error: reading %s: %v", *file, err)
	}

	log.Printf("✅ Success: %d documents, %d passages in index %q", docs, passages, *indexID)
}

// insert stores one document's passages atomically.
func insert(ctx context.Context, uow unitofwork.UnitOfWork, rows []*entity.KnowledgePassage) error {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	for _, row := range rows {
		if err := uow.KnowledgePassageRepository().Create(ctx, row); err != nil {
			return err
		}
	}
	return uow.Commit()
}
