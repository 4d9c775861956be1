package factory

import (
	"fmt"

	"github.com/mikey/mailrisk/internal/adapters/filter"
	"github.com/mikey/mailrisk/internal/config"
	"github.com/mikey/mailrisk/internal/core"
	"github.com/mikey/mailrisk/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates message filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.RiskService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.RiskService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateMessageFilter creates a message filter based on the configuration
func (f *FilterFactory) CreateMessageFilter() (ports.MessageFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")

	switch filterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			f.cfg.GetString("server.relay_address"),
			f.cfg.GetBool("server.block_critical"),
			f.cfg.GetString("server.headers.score"),
			f.cfg.GetString("server.headers.level"),
			f.cfg.GetString("server.headers.flags"),
			f.cfg.GetString("server.headers.lead_type"),
			f.cfg.GetString("server.headers.lead_score"),
			f.cfg.GetBool("leads.enabled"),
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("leads.enabled"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
