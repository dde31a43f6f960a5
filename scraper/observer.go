package scraper

import (
	"tender-scraper/parser"

	"go.uber.org/zap"
)

// LogObserver reports extractor progress at debug level
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("extract")}
}

func (o *LogObserver) StrategyTried(s parser.Strategy, found bool) {
	o.logger.Debug("strategy tried", zap.Stringer("strategy", s), zap.Bool("found", found))
}

func (o *LogObserver) CandidateSelected(c *parser.Candidate, headers parser.HeaderSet) {
	fields := []zap.Field{zap.Stringer("strategy", c.Strategy)}
	if c.Strategy.Tabular() {
		fields = append(fields,
			zap.Int("table_index", c.TableIndex),
			zap.Int("rows", len(c.Rows)),
			zap.Strings("headers", headers.Names))
	} else if c.Elements != nil {
		fields = append(fields, zap.Int("elements", c.Elements.Length()))
	}
	o.logger.Debug("candidate selected", fields...)
}

func (o *LogObserver) RowDropped(s parser.Strategy, index int) {
	o.logger.Debug("row dropped", zap.Stringer("strategy", s), zap.Int("index", index))
}

func (o *LogObserver) Extracted(s parser.Strategy, records int) {
	o.logger.Debug("extracted", zap.Stringer("strategy", s), zap.Int("records", records))
}
