package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koscakluka/justplayit/cmd/justplayit/internal/config"
)

var (
	configPath string
	backend    string
	extractor  string
	noAuto     bool
)

var rootCmd = &cobra.Command{
	Use:   "justplayit",
	Short: "Voice controlled music playback",
	Long: `justplayit listens for "please play ..." commands while nothing is
playing and names the song around you on request.

Settings are read from ~/.justplayit/config.yaml. Credentials come from the
environment:
  DEEPGRAM_API_KEY                 speech to text
  GROQ_API_KEY                     entity extraction with the groq extractor
  APPLE_MUSIC_TEAM_ID, APPLE_MUSIC_KEY_ID, APPLE_MUSIC_PRIVATE_KEY
  AUDD_API_TOKEN                   song recognition (optional)

Keys:
  a  toggle automatic listening
  r  recognize the song that is playing
  t  keep recognizing for the configured duration
  s  stop recognizing
  c  cancel recognition
  q  quit`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			cfg.Capture.Backend = backend
		}
		if cmd.Flags().Changed("extractor") {
			cfg.Entities.Extractor = extractor
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", store.Path(), err)
		}
		return run(cmd.Context(), store, cfg, !noAuto)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.justplayit/config.yaml)")
	rootCmd.Flags().StringVar(&backend, "backend", config.CaptureMiniaudio, "capture backend: miniaudio or portaudio")
	rootCmd.Flags().StringVar(&extractor, "extractor", config.ExtractorGroq, "entity extractor: groq or model")
	rootCmd.Flags().BoolVar(&noAuto, "no-auto", false, "start with automatic listening off for this run")

	rootCmd.AddCommand(configCmd)
}

func openStore() (*config.Store, error) {
	if configPath != "" {
		return config.NewStore(configPath), nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.NewStore(path), nil
}
