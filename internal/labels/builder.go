package labels

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
)

// RowSource loads raw label rows for a set of receipt lines.
type RowSource interface {
	LabelRows(ctx context.Context, lineIDs []int64) ([]Label, error)
}

// Builder assembles printable label data: database rows plus the QR and
// Code128 images embedded as base64 PNG.
type Builder struct {
	source RowSource
}

// NewBuilder constructs Builder.
func NewBuilder(source RowSource) *Builder {
	return &Builder{source: source}
}

// Build loads and decorates the labels for the given receipt lines.
func (b *Builder) Build(ctx context.Context, lineIDs []int64) ([]Label, error) {
	rows, err := b.source.LabelRows(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoLines
	}
	// Identical batch numbers share one barcode render.
	barcodes := map[string]string{}
	for i := range rows {
		qr, err := encodeQR(rows[i].Code)
		if err != nil {
			return nil, fmt.Errorf("labels: qr for %s: %w", rows[i].Code, err)
		}
		rows[i].QRBase64 = qr

		bar, ok := barcodes[rows[i].Batch]
		if !ok {
			bar, err = encodeCode128(rows[i].Batch)
			if err != nil {
				return nil, fmt.Errorf("labels: barcode for %s: %w", rows[i].Batch, err)
			}
			barcodes[rows[i].Batch] = bar
		}
		rows[i].BarcodeBase64 = bar
	}
	return rows, nil
}

func encodeQR(value string) (string, error) {
	data, err := qrcode.Encode(value, qrcode.Medium, 260)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func encodeCode128(value string) (string, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return "", err
	}
	scaled, err := barcode.Scale(code, 440, 50)
	if err != nil {
		return "", err
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, scaled); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
