package main

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-persona/cmd/ema-persona"

var logger = otelslog.NewLogger(scopeName)
