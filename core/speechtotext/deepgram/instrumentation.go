package deepgram

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-persona/core/speechtotext/deepgram"

var logger = otelslog.NewLogger(scopeName)
