package deepgram

import "github.com/koscakluka/ema-persona/core/texttospeech"

// Voice IDs are Deepgram speak models.
const (
	VoiceIzanami = "aura-2-izanami-ja"
	VoiceUzume   = "aura-2-uzume-ja"
	VoiceAma     = "aura-2-ama-ja"
	VoiceFujin   = "aura-2-fujin-ja"
	VoiceEbisu   = "aura-2-ebisu-ja"
	VoiceAsteria = "aura-2-asteria-en"
	VoiceOrion   = "aura-2-orion-en"

	defaultVoice = VoiceIzanami
)

var availableVoices = []texttospeech.Voice{
	{ID: VoiceIzanami, Name: "Izanami", Language: "ja", Gender: "female"},
	{ID: VoiceUzume, Name: "Uzume", Language: "ja", Gender: "female"},
	{ID: VoiceAma, Name: "Ama", Language: "ja", Gender: "female"},
	{ID: VoiceFujin, Name: "Fujin", Language: "ja", Gender: "male"},
	{ID: VoiceEbisu, Name: "Ebisu", Language: "ja", Gender: "male"},
	{ID: VoiceAsteria, Name: "Asteria", Language: "en", Gender: "female"},
	{ID: VoiceOrion, Name: "Orion", Language: "en", Gender: "male"},
}

func GetAvailableVoices() []texttospeech.Voice {
	return append([]texttospeech.Voice(nil), availableVoices...)
}
