// Command pogen writes sample purchase order files for local imports.
package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type sampleLine struct {
	productID int64
	quantity  int
}

// Product ids must exist in the database the files are imported into.
var samples = map[string][]sampleLine{
	"PO-1001.csv.gz": {{1, 24}, {2, 12}, {3, 6}},
	"PO-1002.csv.gz": {{2, 48}, {4, 10}},
	"PO-1003.csv.gz": {{1, 5}, {5, 100}},
}

func main() {
	dir := flag.String("dir", "data/purchase-orders", "output directory")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("failed to create directory")
	}

	for name, lines := range samples {
		path := filepath.Join(*dir, name)
		if err := writePurchaseOrder(path, lines); err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("failed to write purchase order")
		}
		log.Info().Str("file", path).Int("lines", len(lines)).Msg("purchase order written")
	}
}

func writePurchaseOrder(path string, lines []sampleLine) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if _, err := fmt.Fprintf(gz, "# product_id,quantity\n"); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(gz, "%d,%d\n", l.productID, l.quantity); err != nil {
			return errors.Wrap(err, "failed to write line")
		}
	}
	return errors.Wrap(gz.Close(), "failed to flush gzip stream")
}
