package proxy

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-persona/internal/proxy"

var logger = otelslog.NewLogger(scopeName)
