package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	orchestration "github.com/koscakluka/ema-persona/core"
	"github.com/koscakluka/ema-persona/core/audio"
	"github.com/koscakluka/ema-persona/core/audio/miniaudio"
	"github.com/koscakluka/ema-persona/core/audio/portaudio"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/llms/gemini"
	"github.com/koscakluka/ema-persona/core/llms/groq"
	sttdeepgram "github.com/koscakluka/ema-persona/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-persona/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-persona/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-persona/internal/config"
	"github.com/koscakluka/ema-persona/internal/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the persona in the terminal",
	Long: `chat opens the terminal conversation. Type a message and press enter,
or press ctrl+r to speak. Speech needs an audio device and a Deepgram key;
without them the chat stays text only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if textOnly, _ := cmd.Flags().GetBool("text-only"); textOnly {
			cfg.Speech.InputEnabled = false
			cfg.Speech.OutputEnabled = false
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		devices := openAudio(cfg.Speech)
		defer devices.Close()

		model, err := newModelClient(cfg.Chat)
		if err != nil {
			return err
		}

		inbox := tui.NewInbox()
		opts := []orchestration.OrchestratorOption{
			orchestration.WithModelClient(model),
			orchestration.WithPersona(cfg.Chat.Persona),
			orchestration.WithHistoryWindow(cfg.Chat.HistoryPairs),
			orchestration.WithGenerationParams(cfg.Chat.GenerationParams()),
			orchestration.WithRevealInterval(cfg.Chat.RevealInterval),
			orchestration.WithRecognitionLanguage(cfg.Speech.Language),
			orchestration.WithSpeechParams(cfg.Speech.SpeechParams()),
			orchestration.WithSpeechWatchdogInterval(cfg.Speech.WatchdogInterval),
			orchestration.WithEventHandler(inbox.HandleEvent),
			orchestration.WithErrorCallback(inbox.ReportError),
		}
		opts = append(opts, speechOptions(cfg.Speech, devices)...)

		o := orchestration.NewOrchestrator(opts...)
		defer func() {
			if err := o.Close(); err != nil {
				logger.Warn("failed to close orchestrator", "error", err)
			}
		}()

		for _, note := range o.Capabilities().Notes() {
			logger.Info(note)
		}

		return tui.Run(ctx, o, inbox, o.PresentationSource())
	},
}

func init() {
	chatCmd.Flags().Bool("text-only", false, "disable speech input and output")
}

func newModelClient(cfg config.ChatConfig) (llms.ModelClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderGemini:
		return gemini.NewClient(
			gemini.WithEndpoint(cfg.Endpoint),
			gemini.WithTimeout(cfg.Timeout),
		), nil
	case config.ProviderGroq:
		client, err := groq.NewClient(
			groq.WithAPIKey(cfg.Groq.APIKey),
			groq.WithURL(cfg.Groq.URL),
			groq.WithModel(cfg.Groq.Model),
			groq.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}

// audioDevices holds whatever audio backends could be opened. Either side
// may be nil.
type audioDevices struct {
	capturer audio.Capturer
	player   audio.Player
	closers  []io.Closer
}

func (d *audioDevices) Close() error {
	var errs []error
	for _, closer := range d.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("failed to close audio devices", "error", err)
		return err
	}
	return nil
}

func openAudio(cfg config.SpeechConfig) *audioDevices {
	devices := &audioDevices{}
	if !cfg.InputEnabled && !cfg.OutputEnabled {
		return devices
	}

	client, err := miniaudio.NewClient()
	if err != nil {
		logger.Warn("audio unavailable, continuing without speech", "error", err)
	} else {
		devices.closers = append(devices.closers, client)
		devices.player = client
		devices.capturer = client
	}

	if cfg.InputEnabled && strings.EqualFold(cfg.CaptureBackend, "portaudio") {
		capturer, err := portaudio.NewClient(portaudio.DefaultBufferSize)
		if err != nil {
			logger.Warn("portaudio capture unavailable", "error", err)
		} else {
			devices.closers = append(devices.closers, capturer)
			devices.capturer = capturer
		}
	}
	return devices
}

// speechOptions wires Deepgram to the opened devices. A modality whose
// device or key is missing is left out, which the orchestrator reports as
// unsupported.
func speechOptions(cfg config.SpeechConfig, devices *audioDevices) []orchestration.OrchestratorOption {
	var opts []orchestration.OrchestratorOption

	if cfg.InputEnabled && devices.capturer != nil {
		recognizer, err := sttdeepgram.NewRecognizer(devices.capturer,
			sttdeepgram.WithAPIKey(cfg.DeepgramAPIKey),
			sttdeepgram.WithNoSpeechTimeout(cfg.NoSpeechTimeout),
		)
		if err != nil {
			logger.Warn("speech input disabled", "error", err)
		} else {
			opts = append(opts, orchestration.WithRecognizer(recognizer))
		}
	}

	if cfg.OutputEnabled && devices.player != nil {
		engine, err := ttsdeepgram.NewEngine(devices.player, ttsdeepgram.WithAPIKey(cfg.DeepgramAPIKey))
		if err != nil {
			logger.Warn("speech output disabled", "error", err)
		} else {
			opts = append(opts, orchestration.WithSpeechEngine(engine))
		}
	}

	preference, err := voicePreference(cfg)
	if err != nil {
		logger.Warn("invalid voice pattern, using default", "error", err)
	}
	return append(opts, orchestration.WithVoicePreference(preference))
}

func voicePreference(cfg config.SpeechConfig) (texttospeech.VoicePreference, error) {
	preference := texttospeech.DefaultVoicePreference()
	if language, _, _ := strings.Cut(cfg.Language, "-"); language != "" {
		preference.LanguagePrefix = language
	}
	if cfg.VoicePattern == "" {
		return preference, nil
	}
	pattern, err := regexp.Compile(cfg.VoicePattern)
	if err != nil {
		return preference, fmt.Errorf("failed to compile voice pattern: %w", err)
	}
	preference.NamePattern = pattern
	return preference, nil
}
