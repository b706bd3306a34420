package columnar

import (
	"bytes"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

const (
	Extension   = ".parquet"
	ContentType = "application/vnd.apache.parquet"
)

// Encoder writes one EnrichedRecord as a single-row, snappy compressed
// Parquet file whose columns follow domain.EnrichedColumns.
type Encoder struct{}

func NewEncoder() Encoder { return Encoder{} }

func (Encoder) Extension() string   { return Extension }
func (Encoder) ContentType() string { return ContentType }

func (Encoder) Encode(rec domain.EnrichedRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[domain.EnrichedRecord](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write([]domain.EnrichedRecord{rec}); err != nil {
		return nil, fmt.Errorf("write parquet row: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads every record of an enriched Parquet file.
func Decode(data []byte) ([]domain.EnrichedRecord, error) {
	rows, err := parquet.Read[domain.EnrichedRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode parquet", err)
	}
	return rows, nil
}

func DecodeFile(path string) ([]domain.EnrichedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parquet file: %w", err)
	}
	return Decode(data)
}

// Columns lists the column names stored in an enriched Parquet file in
// file order.
func Columns(data []byte) ([]string, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open parquet", err)
	}
	fields := file.Schema().Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name())
	}
	return names, nil
}
