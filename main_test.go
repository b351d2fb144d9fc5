package main

import (
	"bytes"
	"context"
	"testing"

	"domain-expiry/config"
	"domain-expiry/logging"
	"domain-expiry/report"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestDeliverMailDisabled(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	deliver(context.Background(), config.Config{}, report.Report{Subject: "All good!"}, logging.Nop)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "mail disabled, report not sent")
	assert.Contains(t, buf.String(), "All good!")
}
