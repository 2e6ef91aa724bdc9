package labels

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rows []Label
	err  error
}

func (s *stubSource) LabelRows(_ context.Context, _ []int64) ([]Label, error) {
	return s.rows, s.err
}

func TestBuilderDecoratesRows(t *testing.T) {
	source := &stubSource{rows: []Label{
		{Code: "RCPT-20260314-0101", PartNumber: "PN-1", Quantity: 10, Batch: "BATCH-20260314-0001"},
		{Code: "RCPT-20260314-0102", PartNumber: "PN-2", Quantity: 3, Batch: "BATCH-20260314-0001"},
	}}
	builder := NewBuilder(source)

	labels, err := builder.Build(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, labels, 2)
	for _, label := range labels {
		require.NotEmpty(t, label.QRBase64)
		require.NotEmpty(t, label.BarcodeBase64)
		_, err := base64.StdEncoding.DecodeString(label.QRBase64)
		require.NoError(t, err)
	}
	// Same batch, same barcode image.
	require.Equal(t, labels[0].BarcodeBase64, labels[1].BarcodeBase64)
}

func TestBuilderRejectsEmptySelection(t *testing.T) {
	builder := NewBuilder(&stubSource{})
	_, err := builder.Build(context.Background(), []int64{99})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestPaginate(t *testing.T) {
	labels := make([]Label, 17)
	sheet := Paginate(labels)
	require.Len(t, sheet.Pages, 2)
	require.Len(t, sheet.Pages[0], LabelsPerPage)
	require.Len(t, sheet.Pages[1], 2)

	require.Empty(t, Paginate(nil).Pages)
}

type stubPDF struct {
	html string
}

func (s *stubPDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	s.html = html
	return []byte("%PDF-1.7"), nil
}

func TestRendererExecutesTemplate(t *testing.T) {
	client := &stubPDF{}
	renderer, err := NewRenderer(client)
	require.NoError(t, err)

	pdf, err := renderer.Render(context.Background(), []Label{{
		Code:       "RCPT-20260314-0101",
		PartNumber: "PN-77",
		PartName:   "Bracket",
		Quantity:   12,
		Batch:      "BATCH-20260314-0001",
		Receiver:   "user 4",
		ReceivedAt: time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	require.True(t, strings.Contains(client.html, "PN-77"))
	require.True(t, strings.Contains(client.html, "BATCH-20260314-0001"))
	require.True(t, strings.Contains(client.html, "14/03/2026 08:30"))
}
