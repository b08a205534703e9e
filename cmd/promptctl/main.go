// Command promptctl refines an idea from the terminal and optionally
// renders a preview of the refined prompt.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"promptmaster/internal/domain"
	"promptmaster/internal/i18n"
	"promptmaster/internal/infra"
	"promptmaster/internal/infra/credentials"
	"promptmaster/internal/preview"
	"promptmaster/internal/providers/gemini"
	"promptmaster/internal/providers/image"
	"promptmaster/internal/providers/prompt"
	"promptmaster/internal/providers/video"
	"promptmaster/internal/storage"
	"promptmaster/internal/studio"
)

type flags struct {
	idea     string
	media    string
	style    string
	subStyle string
	ratio    string
	camera   string
	lighting string
	mood     string
	negative string
	locale   string
	out      string
	preview  bool
}

func main() {
	var f flags
	flag.StringVar(&f.idea, "idea", "", "raw idea to refine (required)")
	flag.StringVar(&f.media, "media", string(domain.MediaImage), "IMAGE or VIDEO")
	flag.StringVar(&f.style, "style", string(domain.StylePhotorealistic), "primary style")
	flag.StringVar(&f.subStyle, "substyle", "", "sub-style of the style (defaults to its first)")
	flag.StringVar(&f.ratio, "ratio", string(domain.RatioSquare), "aspect ratio")
	flag.StringVar(&f.camera, "camera", string(domain.CameraAuto), "camera angle")
	flag.StringVar(&f.lighting, "lighting", "", "lighting hint")
	flag.StringVar(&f.mood, "mood", "", "mood hint")
	flag.StringVar(&f.negative, "negative", "", "things to avoid")
	flag.StringVar(&f.locale, "locale", i18n.LocaleVietnamese, "language of prompts and messages")
	flag.BoolVar(&f.preview, "preview", false, "render a preview after refining")
	flag.StringVar(&f.out, "out", "", "file for an image preview (default preview.<ext>)")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "promptctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, stdin io.Reader, stdout io.Writer) error {
	settings, err := parseSettings(f)
	if err != nil {
		return err
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger(cfg.AppEnv).Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	factory := gemini.NewFactory(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Timeout:    cfg.GenAITimeout,
	})
	client, err := factory.Client(ctx, "")
	if err != nil {
		return err
	}
	refiner, err := prompt.NewGeminiRefiner(prompt.GeminiOptions{Client: client, Model: cfg.RefineModel, Logger: &logger})
	if err != nil {
		return err
	}
	images, err := image.NewGeminiGenerator(image.GeminiOptions{Client: client, Model: cfg.ImageModel, Logger: &logger})
	if err != nil {
		return err
	}
	videos, err := video.NewVeoBackend(video.VeoOptions{Factory: factory, Model: cfg.VideoModel, Logger: &logger})
	if err != nil {
		return err
	}
	tokens, closeTokens, err := tokenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTokens()

	fallbackKey, err := tokens.Token(ctx, credentials.ProviderGemini)
	if err != nil {
		return err
	}
	in := bufio.NewReader(stdin)
	keys := credentials.NewSelector(tokens, credentials.PickerFunc(func(ctx context.Context) (string, error) {
		return ask(in, stdout, i18n.Text(f.locale, i18n.MsgEnterVideoKey))
	}), fallbackKey)
	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return err
	}
	absStorage, err := filepath.Abs(files.BasePath())
	if err != nil {
		return err
	}
	workflow, err := preview.NewWorkflow(preview.Options{
		Images:      images,
		Videos:      videos,
		Gate:        keys,
		Credentials: keys,
		Confirmer: preview.ConfirmFunc(func(ctx context.Context, message string) (bool, error) {
			answer, err := ask(in, stdout, message+" [y/N]")
			if err != nil {
				return false, err
			}
			answer = strings.ToLower(answer)
			return answer == "y" || answer == "yes" || answer == "c" || answer == "co", nil
		}),
		Sink:         storage.NewSink(files, "file://"+filepath.ToSlash(absStorage)),
		PollInterval: cfg.VideoPollInterval,
		MaxPolls:     cfg.VideoMaxPolls,
		Observer: preview.ObserverFunc(func(ctx context.Context, t preview.Transition) {
			if !t.To.Terminal() {
				fmt.Fprintf(stdout, "... %s\n", t.To)
			}
		}),
		Logger: &logger,
	})
	if err != nil {
		return err
	}
	manager, err := studio.NewManager(studio.ManagerOptions{Refiner: refiner, Previewer: workflow, DefaultLocale: f.locale, Logger: &logger})
	if err != nil {
		return err
	}

	sess := manager.Create(settings, f.locale)
	result, err := sess.Refine(ctx)
	if err != nil {
		if msg := sess.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}
	fmt.Fprintf(stdout, "# %s\n\n%s\n\nNegative: %s\n\n%s\n", result.Title, result.Prompt, result.NegativePrompt, result.Explanation)
	if !f.preview {
		return nil
	}

	out, err := sess.GeneratePreview(ctx)
	if err != nil {
		if msg := sess.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}
	if out.Cancelled {
		fmt.Fprintln(stdout, i18n.Text(f.locale, i18n.MsgPreviewCancelled))
		return nil
	}
	return savePreview(out.Handle, f.out, stdout)
}

func parseSettings(f flags) (domain.GenerationSettings, error) {
	gs := domain.DefaultSettings()
	gs.RawIdea = f.idea
	gs.Lighting = f.lighting
	gs.Mood = f.mood
	gs.NegativePrompt = f.negative

	var err error
	if gs.MediaKind, err = domain.ParseMediaKind(f.media); err != nil {
		return gs, err
	}
	style, err := domain.ParseStyle(f.style)
	if err != nil {
		return gs, err
	}
	gs = gs.WithStyle(style)
	if f.subStyle != "" {
		if gs.SubStyle, err = domain.ParseSubStyle(style, f.subStyle); err != nil {
			return gs, err
		}
	}
	if gs.AspectRatio, err = domain.ParseAspectRatio(f.ratio); err != nil {
		return gs, err
	}
	if gs.CameraAngle, err = domain.ParseCameraAngle(f.camera); err != nil {
		return gs, err
	}
	return gs, gs.Validate()
}

// savePreview writes an inline preview to out. Stored previews are already
// on disk and only reported.
func savePreview(handle domain.MediaHandle, out string, stdout io.Writer) error {
	if !handle.IsDataURI() {
		fmt.Fprintf(stdout, "preview saved: %s\n", handle.URL)
		return nil
	}
	mimeType, data, err := image.DecodeDataURI(handle.URL)
	if err != nil {
		return err
	}
	if out == "" {
		out = "preview" + storage.ExtensionFor(mimeType)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	fmt.Fprintf(stdout, "preview saved: %s\n", out)
	return nil
}

func ask(in *bufio.Reader, stdout io.Writer, question string) (string, error) {
	fmt.Fprintf(stdout, "%s ", question)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// tokenStore persists selected keys in Postgres when DATABASE_URL is set.
func tokenStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (credentials.TokenStore, func(), error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if errors.Is(err, infra.ErrDatabaseDisabled) {
		return credentials.NewMemoryStore(), func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
