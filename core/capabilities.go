package orchestration

// Capabilities are probed once when the orchestrator is created. A missing
// modality stays disabled for the orchestrator's lifetime.
type Capabilities struct {
	RecognitionAvailable bool
	SynthesisAvailable   bool
}

// Notes are short user-facing hints about missing modalities.
func (c Capabilities) Notes() []string {
	var notes []string
	if !c.RecognitionAvailable {
		notes = append(notes, "🎤 音声入力は利用できません。現在テキスト入力のみ。")
	}
	if !c.SynthesisAvailable {
		notes = append(notes, "🔊 音声出力は利用できません。")
	}
	return notes
}

func (o *Orchestrator) Capabilities() Capabilities {
	return o.capabilities
}
