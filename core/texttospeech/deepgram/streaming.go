// Package deepgram synthesizes speech with the Deepgram streaming speak API
// and plays it through an audio player.
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
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-persona/core/audio"
	"github.com/koscakluka/ema-persona/core/texttospeech"
)

const (
	DefaultSpeakURL = "wss://api.deepgram.com/v1/speak"

	apiKeyEnv = "DEEPGRAM_API_KEY"
)

var ErrMissingAPIKey = errors.New("deepgram api key not found")

type Engine struct {
	player   audio.Player
	apiKey   string
	speakURL string

	mu     sync.Mutex
	active *speakRequest
}

var _ texttospeech.Engine = (*Engine)(nil)

type EngineOption func(*Engine)

func WithAPIKey(apiKey string) EngineOption {
	return func(e *Engine) {
		e.apiKey = apiKey
	}
}

func WithSpeakURL(speakURL string) EngineOption {
	return func(e *Engine) {
		if speakURL != "" {
			e.speakURL = speakURL
		}
	}
}

// NewEngine creates an engine playing through player. The API key is taken
// from DEEPGRAM_API_KEY unless WithAPIKey is given.
func NewEngine(player audio.Player, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		player:   player,
		apiKey:   os.Getenv(apiKeyEnv),
		speakURL: DefaultSpeakURL,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.player == nil {
		return nil, fmt.Errorf("audio player is required")
	}
	if e.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return e, nil
}

func (e *Engine) Voices() []texttospeech.Voice {
	return GetAvailableVoices()
}

// Speak streams the synthesized text to the player. Pitch, rate and volume
// are not supported by the speak API and are ignored.
func (e *Engine) Speak(ctx context.Context, request texttospeech.Request, opts ...texttospeech.UtteranceOption) error {
	options := texttospeech.NewUtteranceOptions(opts...)

	voice := defaultVoice
	if request.Voice != nil {
		voice = request.Voice.ID
	}

	conn, err := e.connect(ctx, voice, e.player.EncodingInfo())
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &speakRequest{
		id:      uuid.NewString(),
		conn:    conn,
		player:  e.player,
		options: options,
		cancel:  cancel,
	}

	e.mu.Lock()
	previous := e.active
	e.active = r
	e.mu.Unlock()
	if previous != nil {
		previous.stop()
	}

	if err := r.send(speakMsg{Type: "Speak", Text: request.Text}); err != nil {
		r.stop()
		return err
	}
	if err := r.send(websocketMessage{Type: "Flush"}); err != nil {
		r.stop()
		return err
	}

	go r.run(ctx)
	return nil
}

func (e *Engine) Cancel() error {
	e.mu.Lock()
	active := e.active
	e.active = nil
	e.mu.Unlock()

	if active != nil {
		active.stop()
	}
	return nil
}

func (e *Engine) Paused() bool {
	return e.player.Paused()
}

func (e *Engine) Resume() error {
	return e.player.Resume()
}

func (e *Engine) connect(ctx context.Context, voice string, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := url.Parse(e.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", voice)
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + e.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type speakRequest struct {
	id     string
	player audio.Player

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool

	options   texttospeech.UtteranceOptions
	started   sync.Once
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (r *speakRequest) run(ctx context.Context) {
	defer r.close()

	go func() {
		<-ctx.Done()
		r.stop()
	}()

	for {
		msgType, msg, err := r.conn.ReadMessage()
		if err != nil {
			if !r.isStopped() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.options.ErrorCallback(fmt.Errorf("failed to read deepgram message: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			r.started.Do(r.options.StartedCallback)
			if err := r.player.SendAudio(msg); err != nil {
				r.options.ErrorCallback(fmt.Errorf("failed to play audio: %w", err))
				return
			}
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}
			if parsedMsg.Type != "Flushed" {
				continue
			}

			// everything is synthesized, the utterance ends once it is heard
			r.started.Do(r.options.StartedCallback)
			if err := r.player.Mark(r.id, func(string) {
				if !r.isStopped() {
					r.options.EndedCallback()
				}
			}); err != nil {
				r.options.ErrorCallback(fmt.Errorf("failed to mark playback end: %w", err))
			}
			if err := r.send(websocketMessage{Type: "Close"}); err != nil {
				logger.Debug("failed to close deepgram speak stream", "error", err)
			}
			return
		}
	}
}

func (r *speakRequest) send(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("speak request stopped")
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (r *speakRequest) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// stop drops queued audio and tears the connection down.
func (r *speakRequest) stop() {
	r.mu.Lock()
	alreadyStopped := r.stopped
	r.stopped = true
	r.mu.Unlock()
	if alreadyStopped {
		return
	}

	r.player.ClearBuffer()
	r.cancel()
	r.close()
}

func (r *speakRequest) close() {
	r.closeOnce.Do(func() {
		if err := r.conn.Close(); err != nil {
			logger.Debug("failed to close deepgram websocket", "error", err)
		}
	})
}
