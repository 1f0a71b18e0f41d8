package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"arboreal/harvest/internal/table"
)

// ArchiveName is the default file name of a download.
const ArchiveName = "arboreal_data.zip"

// ContentType of the archive.
const ContentType = "application/zip"

// WriteZip writes one deflated <Name>.csv entry per table, in order.
func WriteZip(w io.Writer, tables []table.Named) error {
	zw := zip.NewWriter(w)
	now := time.Now()
	for _, n := range tables {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     n.Name + ".csv",
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("create %s.csv: %w", n.Name, err)
		}
		if err := WriteCSV(f, n.Table); err != nil {
			return fmt.Errorf("write %s.csv: %w", n.Name, err)
		}
	}
	return zw.Close()
}

// Archive returns the ZIP bytes for tables.
func Archive(tables []table.Named) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, tables); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadZip reads back every CSV entry of an archive, in archive order.
func ReadZip(data []byte) ([]table.Named, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var out []table.Named
	for _, f := range zr.File {
		if path.Ext(f.Name) != ".csv" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		t, err := ReadCSV(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		out = append(out, table.Named{Name: strings.TrimSuffix(f.Name, ".csv"), Table: t})
	}
	return out, nil
}
