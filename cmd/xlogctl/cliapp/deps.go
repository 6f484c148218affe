package cliapp

import (
	"log/slog"

	"github.com/ankur-anand/xlogview/cmd/xlogctl/config"
	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
)

type Dependencies struct {
	Config config.Config

	// WAL
	WalDir      string
	SegmentSize uint64
	Filter      filter.Filter
	Resolver    catalog.Resolver

	// Telemetry
	Logger *slog.Logger
}
