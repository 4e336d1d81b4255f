package columnar

import (
	"github.com/apache/arrow-go/v18/parquet/compress"
	"go.uber.org/zap"

	merrors "github.com/ajitpratap0/movieport/pkg/errors"
)

// FileInfo summarizes the physical layout of a Parquet file
type FileInfo struct {
	Path      string       `json:"path"`
	Rows      int64        `json:"rows"`
	RowGroups int          `json:"row_groups"`
	CreatedBy string       `json:"created_by"`
	Columns   []ColumnInfo `json:"columns"`
}

// ColumnInfo describes one column chunk, aggregated over all row groups
type ColumnInfo struct {
	Name             string               `json:"name"`
	Codec            compress.Compression `json:"-"`
	Compression      string               `json:"compression"`
	Dictionary       bool                 `json:"dictionary"`
	CompressedSize   int64                `json:"compressed_size"`
	UncompressedSize int64                `json:"uncompressed_size"`
}

// Inspect reads the footer of the file at path without decoding any rows
func (c *Codec) Inspect(path string) (*FileInfo, error) {
	rdr, err := c.open(path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	md := rdr.MetaData()
	info := &FileInfo{
		Path:      path,
		Rows:      rdr.NumRows(),
		RowGroups: rdr.NumRowGroups(),
		CreatedBy: md.GetCreatedBy(),
		Columns:   make([]ColumnInfo, md.Schema.NumColumns()),
	}
	for j := range info.Columns {
		info.Columns[j].Name = md.Schema.Column(j).Name()
	}

	for i := 0; i < rdr.NumRowGroups(); i++ {
		rg := md.RowGroup(i)
		for j := range info.Columns {
			cc, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, merrors.Wrap(err, merrors.ErrorTypeFile, "failed to read column chunk metadata").
					WithDetail("path", path).
					WithDetail("row_group", i)
			}
			col := &info.Columns[j]
			col.Codec = cc.Compression()
			col.Compression = cc.Compression().String()
			col.Dictionary = col.Dictionary || cc.HasDictionaryPage()
			col.CompressedSize += cc.TotalCompressedSize()
			col.UncompressedSize += cc.TotalUncompressedSize()
		}
	}

	c.logger.Debug("inspected parquet file", zap.String("path", path), zap.Int64("rows", info.Rows))
	return info, nil
}
