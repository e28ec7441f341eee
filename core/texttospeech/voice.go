package texttospeech

import (
	"regexp"
	"strings"
)

// VoicePreference picks a voice: first one matching both the language prefix
// and the name pattern, then any matching the language, then the engine
// default.
type VoicePreference struct {
	LanguagePrefix string
	NamePattern    *regexp.Regexp
}

// DefaultVoicePattern matches voice names and genders that suit the persona.
const DefaultVoicePattern = `(?i)female|woman|girl|kyoko|haruka|otoya`

var defaultNamePattern = regexp.MustCompile(DefaultVoicePattern)

func DefaultVoicePreference() VoicePreference {
	return VoicePreference{
		LanguagePrefix: "ja",
		NamePattern:    defaultNamePattern,
	}
}

// SelectVoice returns nil when no voice matches the language.
func SelectVoice(voices []Voice, preference VoicePreference) *Voice {
	var languageMatch *Voice
	for i := range voices {
		voice := &voices[i]
		if !strings.HasPrefix(strings.ToLower(voice.Language), strings.ToLower(preference.LanguagePrefix)) {
			continue
		}
		if preference.NamePattern != nil &&
			(preference.NamePattern.MatchString(voice.Name) || preference.NamePattern.MatchString(voice.Gender)) {
			selected := *voice
			return &selected
		}
		if languageMatch == nil {
			languageMatch = voice
		}
	}

	if languageMatch == nil {
		return nil
	}
	selected := *languageMatch
	return &selected
}
