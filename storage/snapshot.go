package storage

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// ErrRestoreTarget is returned when a snapshot is restored into a database
// that already holds records.
var ErrRestoreTarget = errors.New("storage: restore target is not empty")

const snapshotReadChunk = 1024

var errStopIteration = errors.New("storage: stop iteration")

type snapshotRow struct {
	Key   string `parquet:"name=key, type=UTF8"`
	Value string `parquet:"name=value, type=UTF8"`
}

// ExportSnapshot writes every record of db to a snappy compressed Parquet
// file at path and returns the number of rows written.
func ExportSnapshot(path string, db Database) (int, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("storage: create snapshot: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(snapshotRow), 1)
	if err != nil {
		fw.Close()
		return 0, fmt.Errorf("storage: snapshot schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	iterErr := db.Iterate(func(key, value []byte) error {
		rows++
		return pw.Write(&snapshotRow{Key: hex.EncodeToString(key), Value: hex.EncodeToString(value)})
	})
	stopErr := pw.WriteStop()
	closeErr := fw.Close()
	switch {
	case iterErr != nil:
		return 0, fmt.Errorf("storage: snapshot write: %w", iterErr)
	case stopErr != nil:
		return 0, fmt.Errorf("storage: snapshot flush: %w", stopErr)
	case closeErr != nil:
		return 0, fmt.Errorf("storage: snapshot close: %w", closeErr)
	}
	return rows, nil
}

// RestoreSnapshot loads a snapshot written by ExportSnapshot into an empty
// db as one atomic batch.
func RestoreSnapshot(path string, db Database) (int, error) {
	err := db.Iterate(func([]byte, []byte) error { return errStopIteration })
	if errors.Is(err, errStopIteration) {
		return 0, ErrRestoreTarget
	}
	if err != nil {
		return 0, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("storage: open snapshot: %w", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(snapshotRow), 1)
	if err != nil {
		return 0, fmt.Errorf("storage: read snapshot schema: %w", err)
	}
	defer pr.ReadStop()

	batch := NewBatch()
	remaining := int(pr.GetNumRows())
	for remaining > 0 {
		n := snapshotReadChunk
		if remaining < n {
			n = remaining
		}
		rows := make([]snapshotRow, n)
		if err := pr.Read(&rows); err != nil {
			return 0, fmt.Errorf("storage: read snapshot rows: %w", err)
		}
		for _, row := range rows {
			key, err := hex.DecodeString(row.Key)
			if err != nil {
				return 0, fmt.Errorf("storage: snapshot key %q: %w", row.Key, err)
			}
			value, err := hex.DecodeString(row.Value)
			if err != nil {
				return 0, fmt.Errorf("storage: snapshot value for %s: %w", row.Key, err)
			}
			batch.Put(key, value)
		}
		remaining -= n
	}
	if err := db.Write(batch); err != nil {
		return 0, err
	}
	return batch.Len(), nil
}
