// Package deepgram recognizes speech with the Deepgram streaming listen API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-persona/core/audio"
	"github.com/koscakluka/ema-persona/core/speechtotext"
)

const (
	DefaultListenURL       = "wss://api.deepgram.com/v1/listen"
	DefaultModel           = "nova-2"
	DefaultNoSpeechTimeout = 8 * time.Second

	apiKeyEnv = "DEEPGRAM_API_KEY"
)

var ErrMissingAPIKey = errors.New("deepgram api key not found")

// Recognizer streams audio from a capturer to Deepgram and reports the first
// complete utterance.
type Recognizer struct {
	capturer audio.Capturer

	apiKey          string
	model           string
	listenURL       string
	noSpeechTimeout time.Duration
}

var _ speechtotext.Recognizer = (*Recognizer)(nil)

type RecognizerOption func(*Recognizer)

func WithAPIKey(apiKey string) RecognizerOption {
	return func(r *Recognizer) {
		r.apiKey = apiKey
	}
}

func WithModel(model string) RecognizerOption {
	return func(r *Recognizer) {
		if model != "" {
			r.model = model
		}
	}
}

func WithListenURL(listenURL string) RecognizerOption {
	return func(r *Recognizer) {
		if listenURL != "" {
			r.listenURL = listenURL
		}
	}
}

// WithNoSpeechTimeout sets how long a capture waits for speech before it
// ends without a transcript.
func WithNoSpeechTimeout(timeout time.Duration) RecognizerOption {
	return func(r *Recognizer) {
		if timeout > 0 {
			r.noSpeechTimeout = timeout
		}
	}
}

// NewRecognizer creates a recognizer reading from capturer. The API key is
// taken from DEEPGRAM_API_KEY unless WithAPIKey is given.
func NewRecognizer(capturer audio.Capturer, opts ...RecognizerOption) (*Recognizer, error) {
	r := &Recognizer{
		capturer:        capturer,
		apiKey:          os.Getenv(apiKeyEnv),
		model:           DefaultModel,
		listenURL:       DefaultListenURL,
		noSpeechTimeout: DefaultNoSpeechTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.capturer == nil {
		return nil, fmt.Errorf("audio capturer is required")
	}
	if r.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return r, nil
}

func (r *Recognizer) Recognize(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Capture, error) {
	options := speechtotext.NewRecognitionOptions(
		append([]speechtotext.RecognitionOption{speechtotext.WithEncodingInfo(r.capturer.EncodingInfo())}, opts...)...,
	)

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connect(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		language:   toDeepgramLanguage(options.Language),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &session{conn: conn, options: options}
	if err := r.capturer.StartCapture(ctx, s.sendAudio); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to start audio capture: %w", err)
	}

	go s.run(ctx, r.capturer, r.noSpeechTimeout)

	return speechtotext.CaptureFunc(func() error {
		cancel()
		return nil
	}), nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func (r *Recognizer) connect(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(r.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// toDeepgramLanguage maps a BCP 47 tag to the code the listen API expects.
func toDeepgramLanguage(language string) string {
	if strings.HasPrefix(strings.ToLower(language), "ja") {
		return "ja"
	}
	return language
}

type session struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	options speechtotext.RecognitionOptions
}

type sessionResult struct {
	transcript string
	err        error
}

func (s *session) run(ctx context.Context, capturer audio.Capturer, noSpeechTimeout time.Duration) {
	defer s.close(capturer)

	speechStarted := make(chan struct{}, 1)
	results := make(chan sessionResult, 1)
	go readMessages(s.conn, newUtteranceAccumulator(s.options.Language), speechStarted, results)

	noSpeech := time.NewTimer(noSpeechTimeout)
	defer noSpeech.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-speechStarted:
			noSpeech.Stop()
			speechStarted = nil
		case <-noSpeech.C:
			s.options.ErrorCallback(speechtotext.ErrNoSpeech)
			return
		case result := <-results:
			switch {
			case result.err != nil:
				s.options.ErrorCallback(result.err)
			case result.transcript != "":
				s.options.ResultCallback(result.transcript)
			default:
				s.options.EndedCallback()
			}
			return
		}
	}
}

func readMessages(conn *websocket.Conn, utterance *utteranceAccumulator, speechStarted chan<- struct{}, results chan<- sessionResult) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				results <- sessionResult{transcript: utterance.transcript()}
			} else {
				results <- sessionResult{err: fmt.Errorf("failed to read deepgram message: %w", err)}
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		event, err := utterance.process(msg)
		if err != nil {
			logger.Warn("failed to process deepgram message", "error", err)
			continue
		}
		switch event {
		case utteranceEventSpeechStarted:
			select {
			case speechStarted <- struct{}{}:
			default:
			}
		case utteranceEventEnded:
			results <- sessionResult{transcript: utterance.transcript()}
			return
		}
	}
}

func (s *session) sendAudio(audio []byte) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		logger.Debug("failed to write audio to deepgram", "error", err)
	}
}

func (s *session) close(capturer audio.Capturer) {
	if err := capturer.StopCapture(); err != nil {
		logger.Warn("failed to stop audio capture", "error", err)
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		logger.Debug("failed to close deepgram stream", "error", err)
	}
	if err := s.conn.Close(); err != nil {
		logger.Debug("failed to close deepgram websocket", "error", err)
	}
	s.conn = nil
}

type utteranceEvent int

const (
	utteranceEventNone utteranceEvent = iota
	utteranceEventSpeechStarted
	utteranceEventEnded
)

// utteranceAccumulator joins final transcript segments until Deepgram
// reports the end of the utterance.
type utteranceAccumulator struct {
	separator      string
	segments       []string
	heardSpeech    bool
	unendedSegment bool
}

func newUtteranceAccumulator(language string) *utteranceAccumulator {
	return &utteranceAccumulator{separator: segmentSeparator(language)}
}

// segmentSeparator is empty for languages written without spaces between
// words.
func segmentSeparator(language string) string {
	primary, _, _ := strings.Cut(strings.ToLower(language), "-")
	switch primary {
	case "ja", "zh", "th", "lo", "km", "my":
		return ""
	}
	return " "
}

func (u *utteranceAccumulator) transcript() string {
	return strings.TrimSpace(strings.Join(u.segments, u.separator))
}

func (u *utteranceAccumulator) process(msg []byte) (utteranceEvent, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return utteranceEventNone, fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return utteranceEventNone, fmt.Errorf("failed to unmarshal deepgram results: %w", err)
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		event := utteranceEventNone
		if transcript != "" && !u.heardSpeech {
			u.heardSpeech = true
			event = utteranceEventSpeechStarted
		}
		if msgResp.IsFinal && transcript != "" {
			u.segments = append(u.segments, transcript)
			u.unendedSegment = true
		}
		if msgResp.IsFinal && msgResp.SpeechFinal && len(u.segments) > 0 {
			return utteranceEventEnded, nil
		}
		return event, nil

	case api.TypeUtteranceEndResponse:
		if u.unendedSegment {
			return utteranceEventEnded, nil
		}

	case api.TypeSpeechStartedResponse:
		u.unendedSegment = true
		if !u.heardSpeech {
			u.heardSpeech = true
			return utteranceEventSpeechStarted, nil
		}
	}

	return utteranceEventNone, nil
}
