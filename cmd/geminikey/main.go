// Command geminikey stores a Google API key in integration_tokens for the
// promptctl terminal client. The veo provider pre-selects the paid key used
// for video previews; the gemini provider is the fallback key for video calls
// when none is selected. The API server selects paid keys per session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"promptmaster/internal/infra"
	"promptmaster/internal/infra/credentials"
)

func main() {
	var (
		keyFlag      string
		providerFlag string
		clearFlag    bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the provider (falls back to the environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderVeo, "key to configure (veo or gemini)")
	flag.BoolVar(&clearFlag, "clear", false, "remove the stored key instead of setting it")
	flag.Parse()

	_ = godotenv.Load()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderGemini, credentials.ProviderVeo:
	case "":
		provider = credentials.ProviderVeo
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" && !clearFlag {
		switch provider {
		case credentials.ProviderVeo:
			key = strings.TrimSpace(os.Getenv("VEO_API_KEY"))
		default:
			key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		}
		if key == "" {
			fmt.Fprintf(os.Stderr, "%s API key is required via -key or environment\n", strings.ToUpper(provider))
			os.Exit(1)
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "geminikey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare integration_tokens: %v\n", err)
		os.Exit(1)
	}

	if clearFlag {
		if err := store.Clear(ctx, provider); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key cleared\n", strings.ToUpper(provider))
		return
	}
	if err := store.SetToken(ctx, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}
	fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
}
