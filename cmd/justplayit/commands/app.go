package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koscakluka/justplayit/cmd/justplayit/internal/config"
	"github.com/koscakluka/justplayit/cmd/justplayit/internal/ui"
	listening "github.com/koscakluka/justplayit/core"
	"github.com/koscakluka/justplayit/core/audio/miniaudio"
	"github.com/koscakluka/justplayit/core/audio/portaudio"
	"github.com/koscakluka/justplayit/core/commands"
	"github.com/koscakluka/justplayit/core/entities"
	"github.com/koscakluka/justplayit/core/entities/groq"
	"github.com/koscakluka/justplayit/core/entities/inference"
	"github.com/koscakluka/justplayit/core/entities/wordpiece"
	"github.com/koscakluka/justplayit/core/microphone"
	"github.com/koscakluka/justplayit/core/music"
	"github.com/koscakluka/justplayit/core/music/applemusic"
	"github.com/koscakluka/justplayit/core/recognition/audd"
	"github.com/koscakluka/justplayit/core/speechtotext/deepgram"
)

const eventBuffer = 64

type captureDevice interface {
	microphone.Device
	Close()
}

func run(ctx context.Context, store *config.Store, cfg *config.Config, automatic bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	device, err := openDevice(cfg.Capture)
	if err != nil {
		return err
	}
	defer device.Close()

	extractor, err := newExtractor(cfg.Entities)
	if err != nil {
		return err
	}

	var transcriberOpts []deepgram.ClientOption
	if cfg.Deepgram.Model != "" {
		transcriberOpts = append(transcriberOpts, deepgram.WithModel(cfg.Deepgram.Model))
	}
	if cfg.Deepgram.Language != "" {
		transcriberOpts = append(transcriberOpts, deepgram.WithLanguage(cfg.Deepgram.Language))
	}
	transcriber := deepgram.NewTranscriptionClient(transcriberOpts...)

	var coordinator *listening.Coordinator
	session := music.NewSession(music.WithChangeHandler(func(playing bool, _ *music.Track) {
		if coordinator == nil {
			return
		}
		if playing {
			_ = coordinator.PlaybackStarted(ctx)
		} else {
			_ = coordinator.PlaybackStopped(ctx)
		}
	}))

	providerOpts := []applemusic.ClientOption{applemusic.WithPlayer(session)}
	if cfg.AppleMusic.Storefront != "" {
		providerOpts = append(providerOpts, applemusic.WithStorefront(cfg.AppleMusic.Storefront))
	}
	provider, err := applemusic.NewClientFromEnv(providerOpts...)
	if err != nil {
		return fmt.Errorf("create apple music client: %w", err)
	}

	resolverOpts := []commands.ResolverOption{
		commands.WithExplicitFilter(cfg.ExplicitFilter),
		commands.WithBeforePlayback(func(ctx context.Context) {
			if coordinator != nil {
				coordinator.BeforePlayback(ctx)
			}
		}),
	}
	if cfg.TriggerPhrase != "" {
		resolverOpts = append(resolverOpts, commands.WithTriggerPhrase(cfg.TriggerPhrase))
	}
	resolver := commands.NewResolver(extractor, provider, resolverOpts...)

	coordinatorOpts := []listening.CoordinatorOption{
		listening.WithAutomaticListening(cfg.AutomaticListening && automatic),
		listening.WithCooldown(cfg.Cooldown.Duration),
		listening.WithPlayback(session),
		listening.WithTranscriber(transcriber),
		listening.WithCommandResolver(resolver),
		listening.WithSettingsHandler(func(enabled bool) {
			cfg.AutomaticListening = enabled
			_ = store.Save(cfg)
		}),
	}
	if recognizer, err := audd.NewClient(); err == nil {
		coordinatorOpts = append(coordinatorOpts, listening.WithRecognizer(recognizer))
	} else {
		fmt.Fprintln(os.Stderr, "song recognition disabled:", err)
	}

	coordinator = listening.NewCoordinator(microphone.NewSource(device), coordinatorOpts...)
	stream, unsubscribe := coordinator.Subscribe(eventBuffer)
	defer unsubscribe()

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer coordinator.Close()

	program := tea.NewProgram(ui.NewModel(coordinator, stream, cfg.TimedRecognition.Duration), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func openDevice(capture config.Capture) (captureDevice, error) {
	switch capture.Backend {
	case config.CapturePortaudio:
		device, err := portaudio.NewClient(capture.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("open portaudio: %w", err)
		}
		return device, nil
	default:
		device, err := miniaudio.NewClient(
			miniaudio.WithSampleRate(capture.SampleRate),
			miniaudio.WithChannels(capture.Channels),
		)
		if err != nil {
			return nil, fmt.Errorf("open miniaudio: %w", err)
		}
		return device, nil
	}
}

func newExtractor(cfg config.Entities) (commands.EntityExtractor, error) {
	switch cfg.Extractor {
	case config.ExtractorModel:
		tokenizer, err := wordpiece.LoadFile(cfg.VocabPath)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		var inferenceOpts []inference.ClientOption
		if key := os.Getenv("INFERENCE_API_KEY"); key != "" {
			inferenceOpts = append(inferenceOpts, inference.WithAPIKey(key))
		}
		return entities.NewPredictor(tokenizer, tokenizer, inference.Loader(cfg.InferenceEndpoint, inferenceOpts...)), nil
	case config.ExtractorGroq:
		var groqOpts []groq.ExtractorOption
		if cfg.GroqModel != "" {
			groqOpts = append(groqOpts, groq.WithModel(cfg.GroqModel))
		}
		extractor, err := groq.NewExtractor(groqOpts...)
		if err != nil {
			return nil, fmt.Errorf("create groq extractor: %w", err)
		}
		return extractor, nil
	default:
		return nil, errors.New("unknown entity extractor " + cfg.Extractor)
	}
}
