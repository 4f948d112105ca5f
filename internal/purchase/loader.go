package purchase

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// fileLoader reads purchase orders from the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a file-based purchase order loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "purchase-loader").Logger(),
	}
}

// Load reads the gzipped purchase order at filePath.
func (l *fileLoader) Load(ctx context.Context, filePath string) (*Order, error) {
	l.logger.Info().Str("file", filePath).Msg("loading purchase order file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open purchase order file")
		return nil, errors.Wrapf(err, "failed to open purchase order file %s", filePath)
	}
	defer file.Close()

	po, err := Parse(ctx, file, NumberFromSource(filePath))
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to parse purchase order file")
		return nil, err
	}

	l.logger.Info().
		Str("file", filePath).
		Str("po_number", po.Number).
		Int("lines", len(po.Lines)).
		Msg("purchase order file loaded")

	return po, nil
}
