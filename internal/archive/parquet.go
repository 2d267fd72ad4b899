package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/nl2sql/nl2sql/internal/query"
)

const (
	metadataSQL     = "nl2sql.sql"
	metadataColumns = "nl2sql.columns"
)

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

// parquetRow keeps each result row as an ordered JSON object so the file schema does not
// depend on the target database column types.
type parquetRow struct {
	RowIndex    int64  `parquet:"row_index"`
	PayloadJSON string `parquet:"payload_json"`
}

func EncodeRowsToParquet(sqlText string, columns []string, rows []query.Row) (ParquetEncodeResult, error) {
	encoded := make([]parquetRow, 0, len(rows))
	for index, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("encode row %d: %w", index, err)
		}
		encoded = append(encoded, parquetRow{RowIndex: int64(index), PayloadJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf,
		parquet.KeyValueMetadata(metadataSQL, sqlText),
		parquet.KeyValueMetadata(metadataColumns, strings.Join(columns, ",")),
	)
	if len(encoded) > 0 {
		if _, err := writer.Write(encoded); err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(encoded)),
	}, nil
}
