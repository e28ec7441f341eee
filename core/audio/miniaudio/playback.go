package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-persona/core/audio"
)

type playbackClient struct {
	device *malgo.Device

	deviceMu sync.Mutex

	// mu guards the queue and the marks; it is taken from the device
	// callback so it must never be held while calling out.
	mu     sync.Mutex
	queued []byte
	marks  []playbackMark
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Start() error {
	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()

	if c.device == nil {
		return ErrDeviceNotInitialized
	} else if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// Paused reports a stopped device that still has audio queued.
func (c *playbackClient) Paused() bool {
	c.deviceMu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.deviceMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	return !started && (len(c.queued) > 0 || len(c.marks) > 0)
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.deviceMu.Lock()
	initialized := c.device != nil
	c.deviceMu.Unlock()
	if !initialized {
		return ErrDeviceNotInitialized
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, audio...)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = nil
	c.marks = nil
}

func (c *playbackClient) Mark(name string, callback func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = append(c.marks, playbackMark{
		name:     name,
		position: len(c.queued),
		callback: callback,
	})
	return nil
}

func (c *playbackClient) Uninit() error {
	c.deviceMu.Lock()
	defer c.deviceMu.Unlock()

	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := min(int(frameCount)*bytesPerFrame, len(pOutput))

		c.mu.Lock()
		played := copy(pOutput[:need], c.queued)
		c.queued = c.queued[played:]
		passed := c.passMarks(played)
		c.mu.Unlock()

		// zero the rest so a short queue does not replay stale samples
		clear(pOutput[played:need])

		if len(passed) > 0 {
			go func() {
				for _, mark := range passed {
					mark.callback(mark.name)
				}
			}()
		}
	}
}

// passMarks advances marks by played bytes and returns the ones reached.
func (c *playbackClient) passMarks(played int) []playbackMark {
	passed := 0
	for i := range c.marks {
		if c.marks[i].position <= played {
			passed++
			continue
		}
		c.marks[i].position -= played
	}
	if passed == 0 {
		return nil
	}
	reached := c.marks[:passed]
	c.marks = c.marks[passed:]
	return reached
}
