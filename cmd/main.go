package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"manual-rag/internal/config"
	"manual-rag/internal/embedding"
	"manual-rag/internal/helper"
	"manual-rag/internal/ingest"
	"manual-rag/internal/models"
	"manual-rag/internal/parser"
	"manual-rag/internal/rag"
	"manual-rag/internal/retriever"
	"manual-rag/internal/store"
	"manual-rag/internal/store/chromemdb"
	"manual-rag/internal/store/postgres"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file to ingest")
	tenant := flag.String("tenant", "", "Tenant name (defaults to the document filename on ingest)")
	query := flag.String("query", "", "Query to be answered")
	topK := flag.Int("k", 0, "Number of chunks to retrieve (defaults to config top_k)")
	listTenants := flag.Bool("list-tenants", false, "List tenants in the configured class")
	removeTenant := flag.String("remove-tenant", "", "Remove a tenant and its records")
	exportPath := flag.String("export", "", "Export the chromem store to a file")
	importPath := flag.String("import", "", "Import a previously exported chromem store file")
	dryRun := flag.Bool("dry-run", false, "Parse only, do not embed or store")
	stream := flag.Bool("stream", false, "Stream the answer from an OpenRouter-style endpoint")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// secrets may live in a local .env instead of the shell
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx := context.Background()

	switch {
	case *filePath != "" && *query != "":
		log.Fatal().Msg("Please provide either a document file using the -file flag or a query using the -query flag, but not both")
	case *filePath != "":
		ingestFile(ctx, cfg, *filePath, *tenant, *dryRun)
	case *query != "":
		answerQuery(ctx, cfg, *query, *tenant, *topK, *stream)
	case *listTenants:
		printTenants(ctx, cfg)
	case *removeTenant != "":
		dropTenant(ctx, cfg, *removeTenant)
	case *exportPath != "":
		transferStore(ctx, cfg, *exportPath, false)
	case *importPath != "":
		transferStore(ctx, cfg, *importPath, true)
	default:
		log.Fatal().Msg("Please provide a document file using the -file flag or a query using the -query flag")
	}
}

func buildStore(cfg *config.Config) (store.TenantStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendChromem:
		st, err := chromemdb.New(chromemdb.Options{
			Path:          cfg.Chromem.Path,
			InMemory:      cfg.Chromem.InMemory,
			Compress:      cfg.Chromem.Compress,
			EncryptionKey: cfg.Chromem.EncryptionKey,
			VectorSize:    cfg.RAG.VectorSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	case config.BackendPostgres:
		st, err := postgres.Connect(&cfg.Database, cfg.RAG.VectorSize)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Init(context.Background()); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func ingestFile(ctx context.Context, cfg *config.Config, filePath, tenant string, dryRun bool) {
	if dryRun {
		chunks, err := parser.Parse(filePath, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error parsing document")
		}
		log.Info().Int("chunks", len(chunks)).Msg("Parsed document")
		helper.PrettyPrint(chunks)
		return
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	n, err := ingest.Run(ctx, cfg, embedder, st, filePath, tenant)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	log.Info().Int("chunks", n).Msg("Ingest complete")
}

func answerQuery(ctx context.Context, cfg *config.Config, query, tenant string, topK int, stream bool) {
	if tenant == "" {
		log.Fatal().Msg("Please provide the -tenant flag with -query")
	}
	if topK <= 0 {
		topK = cfg.RAG.TopK
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	r := rag.NewRAG(retriever.New(embedder, st), cfg)

	var response *models.PromptResponse
	if stream {
		response, err = r.Stream(ctx, query, topK, cfg.RAG.ClassName, tenant)
	} else {
		response, err = r.Answer(ctx, query, topK, cfg.RAG.ClassName, tenant)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func printTenants(ctx context.Context, cfg *config.Config) {
	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	tenants, err := st.Tenants(ctx, cfg.RAG.ClassName)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing tenants")
	}
	for _, name := range tenants {
		fmt.Println(name)
	}
}

func transferStore(ctx context.Context, cfg *config.Config, path string, importing bool) {
	if cfg.Store.Backend != config.BackendChromem {
		log.Fatal().Msg("Export and import are only supported for the chromem backend")
	}
	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	cs := st.(*chromemdb.Store)
	if importing {
		if err := cs.Import(ctx, path); err != nil {
			log.Fatal().Err(err).Msg("Error importing store")
		}
		log.Info().Str("path", path).Msg("Store imported")
		return
	}
	if err := cs.Export(ctx, path); err != nil {
		log.Fatal().Err(err).Msg("Error exporting store")
	}
	log.Info().Str("path", path).Msg("Store exported")
}

func dropTenant(ctx context.Context, cfg *config.Config, tenant string) {
	st, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	if err := st.RemoveTenant(ctx, cfg.RAG.ClassName, tenant); err != nil {
		log.Fatal().Err(err).Msg("Error removing tenant")
	}
	log.Info().Str("tenant", tenant).Msg("Tenant removed")
}
