// Package purchase records received purchase orders into stock. A purchase
// order is a gzipped CSV file of "product_id,quantity" rows; lines starting
// with '#' are comments. The file name without extension is the purchase
// order number.
package purchase

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"io"
	"path"
	"strconv"
	"strings"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
)

// Line is one received product.
type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Order is a parsed purchase order.
type Order struct {
	Number string `json:"number"`
	Lines  []Line `json:"lines"`
}

// Loader reads a purchase order from a source.
type Loader interface {
	Load(ctx context.Context, source string) (*Order, error)
}

// NumberFromSource derives the purchase order number from a file name:
// "inbound/PO-1042.csv.gz" is "PO-1042".
func NumberFromSource(source string) string {
	name := path.Base(strings.ReplaceAll(source, "\\", "/"))
	for _, ext := range []string{".gz", ".csv"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// Parse reads a gzipped purchase order.
func Parse(ctx context.Context, r io.Reader, number string) (*Order, error) {
	if number == "" || number == "." || number == "/" {
		return nil, model.Errorf(model.KindValidation, "purchase order has no number")
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "purchase order %s is not gzip", number)
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.Comment = '#'
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	po := &Order{Number: number}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, model.Errorf(model.KindValidation, "purchase order %s line %d: %v", number, parseErr.Line, parseErr.Err)
			}
			return nil, errors.Wrapf(err, "failed to read purchase order %s", number)
		}

		line, _ := reader.FieldPos(0)
		productID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil || productID <= 0 {
			return nil, model.Errorf(model.KindValidation, "purchase order %s line %d: invalid product id %q", number, line, record[0])
		}
		qty, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || qty <= 0 {
			return nil, model.Errorf(model.KindValidation, "purchase order %s line %d: invalid quantity %q", number, line, record[1])
		}
		po.Lines = append(po.Lines, Line{ProductID: productID, Quantity: qty})
	}

	if len(po.Lines) == 0 {
		return nil, model.Errorf(model.KindValidation, "purchase order %s has no lines", number)
	}
	return po, nil
}
